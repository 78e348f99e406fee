package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

var ErrUnsupportedFormat = errors.New("unsupported audio format")

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV wraps raw little-endian PCM in a RIFF/WAVE container. Only
// linear16 input is accepted.
func EncodeWAV(pcm []byte, info EncodingInfo) ([]byte, error) {
	if info.Format != EncodingLinear16 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, info.Format.Name())
	}
	if info.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", info.SampleRate)
	}

	channels := uint16(info.channels())
	bitsPerSample := uint16(16)
	blockAlign := channels * bitsPerSample / 8
	dataSize := uint32(len(pcm))

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(info.SampleRate),
		ByteRate:      uint32(info.SampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// DecodeWAV returns the PCM payload and encoding of a canonical 44 byte
// header WAV file.
func DecodeWAV(data []byte) ([]byte, EncodingInfo, error) {
	if len(data) < wavHeaderSize {
		return nil, EncodingInfo{}, fmt.Errorf("wav data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, EncodingInfo{}, fmt.Errorf("failed to read wav header: %w", err)
	}

	switch {
	case string(header.ChunkID[:]) != "RIFF":
		return nil, EncodingInfo{}, fmt.Errorf("invalid wav file: missing RIFF header")
	case string(header.Format[:]) != "WAVE":
		return nil, EncodingInfo{}, fmt.Errorf("invalid wav file: missing WAVE format")
	case string(header.Subchunk2ID[:]) != "data":
		return nil, EncodingInfo{}, fmt.Errorf("invalid wav file: missing data chunk")
	case header.AudioFormat != 1 || header.BitsPerSample != 16:
		return nil, EncodingInfo{}, fmt.Errorf("%w: format %d with %d bits", ErrUnsupportedFormat, header.AudioFormat, header.BitsPerSample)
	}

	end := wavHeaderSize + int(header.Subchunk2Size)
	if end > len(data) {
		end = len(data)
	}

	return data[wavHeaderSize:end], EncodingInfo{
		SampleRate: int(header.SampleRate),
		Channels:   int(header.NumChannels),
		Format:     EncodingLinear16,
	}, nil
}
