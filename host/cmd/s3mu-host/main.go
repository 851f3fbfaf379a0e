// Command s3mu-host drives a mailbox relay board from a bench PC.
//
//	s3mu-host -device /dev/ttyACM0            interactive shell
//	s3mu-host -sim send 0x103 1 2             one command against the simulator
package main

import (
	"flag"
	"os"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"s3mu/host/client"
	"s3mu/host/config"
	"s3mu/host/report"
	"s3mu/host/sim"
)

var (
	configPath = flag.String("config", "", "Station configuration file (JSON)")
	device     = flag.String("device", "", "Serial device path, overrides the configuration")
	broker     = flag.String("mqtt", "", "MQTT broker URL for exchange reports, overrides the configuration")
	simulate   = flag.Bool("sim", false, "Talk to an in-process simulated board")
)

func loadConfig() (*config.StationConfig, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *broker != "" {
		cfg.Broker = *broker
	}
	return cfg, nil
}

func connect(cfg *config.StationConfig) (*client.Client, func(), error) {
	if *simulate {
		board, port := sim.New()
		c := client.New(port, cfg.ResponseTimeout())
		return c, func() {
			c.Close()
			board.Close()
		}, nil
	}
	c, err := client.Open(cfg.Serial(), cfg.ResponseTimeout())
	if err != nil {
		return nil, nil, err
	}
	return c, func() { c.Close() }, nil
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := loadConfig()
	if err != nil {
		glog.Exit(err)
	}

	c, closeFn, err := connect(cfg)
	if err != nil {
		glog.Exit(err)
	}
	defer closeFn()

	if cfg.Broker != "" {
		r, err := report.Connect(cfg.Broker, cfg.TopicPrefix)
		if err != nil {
			glog.Warningf("reporting disabled: %v", err)
		} else {
			defer r.Close()
			c.SetObserver(r.Observe)
		}
	}

	id, err := c.Identify()
	if err != nil {
		glog.Errorf("identify: %v", err)
		closeFn()
		glog.Flush()
		os.Exit(1)
	}
	glog.Infof("connected: %s, %d tx / %d rx slots", id.Version, id.TxSlots, id.RxSlots)

	sh := newShell(c, cfg)
	if args := flag.Args(); len(args) > 0 {
		if err := sh.Process(args...); err != nil {
			glog.Errorf("%s: %v", strings.Join(args, " "), err)
		}
		return
	}
	sh.Println("s3mu-host: " + id.Version + ", type help for commands")
	sh.Run()
}

func newShell(c *client.Client, cfg *config.StationConfig) *ishell.Shell {
	sh := ishell.New()
	sh.SetPrompt("s3mu> ")
	sh.Set(clientKey, c)
	sh.Set(configKey, cfg)
	for _, cmd := range commands {
		sh.AddCmd(cmd)
	}
	return sh
}
