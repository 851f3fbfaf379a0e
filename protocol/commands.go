package protocol

// Commands, host to relay
const (
	CmdIdentify     uint16 = 1 // no arguments
	CmdSend         uint16 = 2 // words
	CmdGetResponse  uint16 = 3 // max
	CmdReceiveFixed uint16 = 4 // count
	CmdWaitForData  uint16 = 5 // count budget
	CmdChecksum     uint16 = 6 // words
)

// Responses, relay to host
const (
	RespIdentify uint16 = 0  // version tx_slots rx_slots max_words
	RespStatus   uint16 = 16 // status
	RespWords    uint16 = 17 // status header words
	RespChecksum uint16 = 18 // value
)

// MaxWords bounds a word list carried in one frame
const MaxWords = 8

// Identity is the decoded identify response
type Identity struct {
	Version  string
	TxSlots  int
	RxSlots  int
	MaxWords int
}

// EncodeIdentity writes the arguments of RespIdentify
func EncodeIdentity(output OutputBuffer, id Identity) {
	EncodeVLQString(output, id.Version)
	EncodeVLQUint(output, uint32(id.TxSlots))
	EncodeVLQUint(output, uint32(id.RxSlots))
	EncodeVLQUint(output, uint32(id.MaxWords))
}

// DecodeIdentity reads the arguments of RespIdentify
func DecodeIdentity(data *[]byte) (Identity, error) {
	var id Identity
	var err error
	if id.Version, err = DecodeVLQString(data); err != nil {
		return id, err
	}
	tx, err := DecodeVLQUint(data)
	if err != nil {
		return id, err
	}
	rx, err := DecodeVLQUint(data)
	if err != nil {
		return id, err
	}
	maxWords, err := DecodeVLQUint(data)
	if err != nil {
		return id, err
	}
	id.TxSlots, id.RxSlots, id.MaxWords = int(tx), int(rx), int(maxWords)
	return id, nil
}

// WordsReply is the decoded RespWords payload
type WordsReply struct {
	Status uint8
	Header uint32
	Words  []uint32
}

// EncodeWordsReply writes the arguments of RespWords
func EncodeWordsReply(output OutputBuffer, status uint8, header uint32, words []uint32) {
	EncodeVLQUint(output, uint32(status))
	EncodeVLQUint(output, header)
	EncodeWords(output, words)
}

// DecodeWordsReply reads the arguments of RespWords
func DecodeWordsReply(data *[]byte) (WordsReply, error) {
	var r WordsReply
	status, err := DecodeVLQUint(data)
	if err != nil {
		return r, err
	}
	r.Status = uint8(status)
	if r.Header, err = DecodeVLQUint(data); err != nil {
		return r, err
	}
	var dst [MaxWords]uint32
	words, err := DecodeWords(data, dst[:])
	if err != nil {
		return r, err
	}
	r.Words = append([]uint32(nil), words...)
	return r, nil
}
