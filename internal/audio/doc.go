// Package audio converts captured audio samples into a self-contained
// 16-bit PCM RIFF/WAVE container and back.
package audio
