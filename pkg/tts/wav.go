package tts

import (
	"encoding/binary"
	"errors"
	"fmt"
)

type wavFormat struct {
	audioFormat   uint16
	numChannels   uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// ConcatWAV joins PCM WAV segments into a single file. All segments
// must share the same sample format.
func ConcatWAV(segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, errors.New("no wav segments")
	}
	if len(segments) == 1 {
		return segments[0], nil
	}

	var format wavFormat
	var data []byte
	for i, seg := range segments {
		f, d, err := parseWAV(seg)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		if i == 0 {
			format = f
		} else if f != format {
			return nil, fmt.Errorf("segment %d: sample format mismatch", i)
		}
		data = append(data, d...)
	}
	return encodeWAV(format, data), nil
}

func parseWAV(b []byte) (wavFormat, []byte, error) {
	var f wavFormat
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return f, nil, errors.New("not a riff wave file")
	}

	var data []byte
	haveFmt := false
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(b) {
			return f, nil, errors.New("truncated chunk")
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return f, nil, errors.New("short fmt chunk")
			}
			f.audioFormat = binary.LittleEndian.Uint16(b[body : body+2])
			f.numChannels = binary.LittleEndian.Uint16(b[body+2 : body+4])
			f.sampleRate = binary.LittleEndian.Uint32(b[body+4 : body+8])
			f.bitsPerSample = binary.LittleEndian.Uint16(b[body+14 : body+16])
			haveFmt = true
		case "data":
			data = b[body : body+size]
		}
		// Chunks are word aligned.
		pos = body + size + size%2
	}
	if !haveFmt {
		return f, nil, errors.New("missing fmt chunk")
	}
	if data == nil {
		return f, nil, errors.New("missing data chunk")
	}
	return f, data, nil
}

func encodeWAV(f wavFormat, data []byte) []byte {
	blockAlign := f.numChannels * f.bitsPerSample / 8
	byteRate := f.sampleRate * uint32(blockAlign)

	out := make([]byte, 44+len(data))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(data)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], f.audioFormat)
	binary.LittleEndian.PutUint16(out[22:24], f.numChannels)
	binary.LittleEndian.PutUint32(out[24:28], f.sampleRate)
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], f.bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(data)))
	copy(out[44:], data)
	return out
}
