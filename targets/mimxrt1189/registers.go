//go:build tinygo && mimxrt1189

package main

import "s3mu/mailbox"

// s3muRegisters exposes the S3MU block to the mailbox transport
type s3muRegisters struct {
	mu *S3MU_Type
}

var _ mailbox.Registers = s3muRegisters{}

func (r s3muRegisters) TxStatus() uint32 { return r.mu.TSR.Get() }

func (r s3muRegisters) RxStatus() uint32 { return r.mu.RSR.Get() }

func (r s3muRegisters) WriteTx(slot int, word uint32) { r.mu.TR[slot].Set(word) }

func (r s3muRegisters) ReadRx(slot int) uint32 { return r.mu.RR[slot].Get() }
