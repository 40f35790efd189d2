package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// DecodeWAV parses a 16-bit PCM WAV stream into a mono float64 signal in
// [-1, 1] plus its sample rate. Multi-channel audio is downmixed by
// averaging. Any malformed input yields an ExtractionError.
func DecodeWAV(r io.Reader) ([]float64, int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, extractionErr("read audio", err)
	}
	if len(raw) < 12 {
		return nil, 0, extractionErr("file too short for RIFF header", nil)
	}
	if !bytes.Equal(raw[0:4], []byte("RIFF")) || !bytes.Equal(raw[8:12], []byte("WAVE")) {
		return nil, 0, extractionErr("not a RIFF/WAVE file", nil)
	}

	var (
		sampleRate    int
		numChannels   int
		bitsPerSample int
		audioFormat   int
		data          []byte
		haveFmt       bool
	)

	// Walk chunks; tolerate unknown ones.
	pos := 12
	for pos+8 <= len(raw) {
		id := string(raw[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(raw[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(raw) {
			size = len(raw) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, extractionErr("fmt chunk truncated", nil)
			}
			audioFormat = int(binary.LittleEndian.Uint16(raw[body : body+2]))
			numChannels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
			haveFmt = true
		case "data":
			data = raw[body : body+size]
		}
		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt {
		return nil, 0, extractionErr("missing fmt chunk", nil)
	}
	if audioFormat != 1 {
		return nil, 0, extractionErr(fmt.Sprintf("unsupported audio format %d (want PCM)", audioFormat), nil)
	}
	if bitsPerSample != 16 {
		return nil, 0, extractionErr(fmt.Sprintf("unsupported bit depth %d (want 16)", bitsPerSample), nil)
	}
	if numChannels < 1 {
		return nil, 0, extractionErr("invalid channel count", nil)
	}
	if sampleRate <= 0 {
		return nil, 0, extractionErr("invalid sample rate", nil)
	}
	if len(data) == 0 {
		return nil, 0, extractionErr("empty data chunk", nil)
	}

	bytesPerFrame := 2 * numChannels
	numFrames := len(data) / bytesPerFrame
	if numFrames == 0 {
		return nil, 0, extractionErr("no complete sample frames", nil)
	}

	signal := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		var sum float64
		for ch := 0; ch < numChannels; ch++ {
			off := i*bytesPerFrame + ch*2
			s := int16(binary.LittleEndian.Uint16(data[off : off+2]))
			sum += float64(s) / 32768.0
		}
		signal[i] = sum / float64(numChannels)
	}
	return signal, sampleRate, nil
}

// EncodeWAV writes a mono float64 signal as a 16-bit PCM WAV file. Used by
// tests and by callers that need to forward decoded audio downstream.
func EncodeWAV(w io.Writer, signal []float64, sampleRate int) error {
	dataSize := len(signal) * 2

	var header bytes.Buffer
	header.WriteString("RIFF")
	binary.Write(&header, binary.LittleEndian, uint32(36+dataSize))
	header.WriteString("WAVE")
	header.WriteString("fmt ")
	binary.Write(&header, binary.LittleEndian, uint32(16))
	binary.Write(&header, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&header, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&header, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&header, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&header, binary.LittleEndian, uint16(2))
	binary.Write(&header, binary.LittleEndian, uint16(16))
	header.WriteString("data")
	binary.Write(&header, binary.LittleEndian, uint32(dataSize))
	if _, err := w.Write(header.Bytes()); err != nil {
		return err
	}

	buf := make([]byte, dataSize)
	for i, v := range signal {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v*32767)))
	}
	_, err := w.Write(buf)
	return err
}
