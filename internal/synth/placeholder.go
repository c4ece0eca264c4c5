package synth

import (
	"bytes"
	"encoding/binary"
)

const (
	placeholderSampleRate = 24000
	placeholderSeconds    = 3
	placeholderBitDepth   = 16
	placeholderChannels   = 1
)

// placeholderWAV builds a silent mono PCM clip served when the synthesis
// backend is unavailable. The output is deterministic, so repeated fallbacks
// for the same job are byte-identical.
func placeholderWAV() []byte {
	sampleCount := placeholderSampleRate * placeholderSeconds
	dataSize := sampleCount * placeholderChannels * placeholderBitDepth / 8

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	byteRate := placeholderSampleRate * placeholderChannels * placeholderBitDepth / 8
	blockAlign := placeholderChannels * placeholderBitDepth / 8

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(placeholderChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(placeholderSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(placeholderBitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))

	return buf.Bytes()
}
