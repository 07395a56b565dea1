package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

func init() {
	gob.Register(&Ping{})
	gob.Register(&Pong{})
	gob.Register(&Register{})
	gob.Register(&RegisterAck{})
	gob.Register(&CreateTransfer{})
	gob.Register(&TransferCreated{})
	gob.Register(&StateChanged{})
	gob.Register(&HandleImport{})
	gob.Register(&HandleExport{})
	gob.Register(&HandleShare{})
	gob.Register(&KnownPeersRequest{})
	gob.Register(&KnownPeersResponse{})
	gob.Register(&DefaultPeerRequest{})
	gob.Register(&DefaultPeerResponse{})
	gob.Register(&Error{})
}

// maxFrameSize rejects frames no sane message produces, protecting the
// reader from a corrupted length prefix.
const maxFrameSize = 16 << 20

// Codec frames each message as a big-endian uint32 length followed by
// the gob-encoded payload. The prefix keeps back-to-back messages on a
// stream from bleeding into each other's decoder buffer.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Encode(w io.Writer, msg Message) error {
	data, err := c.EncodeToBytes(msg)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (c *Codec) Decode(r io.Reader) (Message, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return c.DecodeFromBytes(data)
}

// EncodeToBytes returns the bare gob payload, without the frame prefix.
func (c *Codec) EncodeToBytes(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFromBytes decodes one bare gob payload.
func (c *Codec) DecodeFromBytes(data []byte) (Message, error) {
	var msg Message
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, err
	}
	return msg, nil
}
