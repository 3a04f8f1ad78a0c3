// Package device records from and plays to local audio devices using PortAudio.
package device

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/mgoltzsche/speech-relay/internal/failure"
)

func inputDevice(deviceNameOrID string) (*portaudio.DeviceInfo, error) {
	d, err := lookupDevice(deviceNameOrID, portaudio.DefaultInputDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: get audio input device: %w", failure.ErrDevice, err)
	}

	if d.MaxInputChannels < 1 {
		printAvailableDevices()
		return nil, fmt.Errorf("%w: audio device %q is not an input device or in use by another program", failure.ErrDevice, d.Name)
	}

	slog.Info("using audio input device", "name", d.Name, "sampleRate", int(d.DefaultSampleRate))

	return d, nil
}

func outputDevice(deviceNameOrID string) (*portaudio.DeviceInfo, error) {
	d, err := lookupDevice(deviceNameOrID, portaudio.DefaultOutputDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: get audio output device: %w", failure.ErrDevice, err)
	}

	if d.MaxOutputChannels < 1 {
		printAvailableDevices()
		return nil, fmt.Errorf("%w: audio device %q is not an output device or in use by another program", failure.ErrDevice, d.Name)
	}

	slog.Info("using audio output device", "name", d.Name, "sampleRate", int(d.DefaultSampleRate))

	return d, nil
}

func lookupDevice(nameOrID string, defaultDevice func() (*portaudio.DeviceInfo, error)) (*portaudio.DeviceInfo, error) {
	if nameOrID == "" {
		return defaultDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list available audio devices: %w", err)
	}

	id, err := strconv.ParseInt(nameOrID, 10, 32)
	if err != nil {
		for _, d := range devices {
			if strings.Contains(d.Name, nameOrID) {
				return d, nil
			}
		}

		printAvailableDevices()

		return nil, fmt.Errorf("audio device %q not found", nameOrID)
	}

	if id < 0 || id >= int64(len(devices)) {
		printAvailableDevices()

		return nil, fmt.Errorf("audio device %d not found - please specify the ID of an existing device", id)
	}

	return devices[id], nil
}

func printAvailableDevices() {
	devices, err := portaudio.Devices()
	if err != nil {
		slog.Warn("failed to list audio devices", "err", err)
		return
	}

	fmt.Fprintln(os.Stderr, "\nAvailable audio devices:")
	fmt.Fprintf(os.Stderr, "%2s  %-55s  %2s  %3s  %s\n", "ID", "NAME", "IN", "OUT", "SAMPLERATE")

	for i, d := range devices {
		fmt.Fprintf(os.Stderr, "%2d  %-55s  %2d  %3d  %10d\n", i, d.Name, d.MaxInputChannels, d.MaxOutputChannels, int(d.DefaultSampleRate))
	}

	fmt.Fprintln(os.Stderr)
}
