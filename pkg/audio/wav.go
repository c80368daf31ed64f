package audio

import (
	"bytes"
	"encoding/binary"
)

// NewWavBuffer wraps raw PCM samples in a canonical RIFF/WAVE container.
// channels and bitsPerSample describe the layout of pcm itself; the caller
// is responsible for interleaving multi-channel samples beforehand.
func NewWavBuffer(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	buf := new(bytes.Buffer)

	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))                  // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))                   // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))            // channels
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))          // sample rate
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))            // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))          // block align
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))       // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// FloatsToWAV builds a mono 16-bit PCM WAV container from preprocessed
// float32 samples in [-1, 1], the format the remote ASR multipart upload
// (spec.md §4.4) expects as its "file" field.
func FloatsToWAV(samples []float32, sampleRate int) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		s := int16(f * 32767)
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	return NewWavBuffer(pcm, sampleRate, 1, 16)
}
