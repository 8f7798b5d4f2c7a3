// Package vice implements the device facade over a VICE emulator reached
// through its binary-monitor control socket.
package vice

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/retrolab/c64bridge/internal/facade"
	"github.com/retrolab/c64bridge/internal/monitor"
	"github.com/retrolab/c64bridge/internal/ready"
	"github.com/retrolab/c64bridge/internal/supervise"
)

// Backend drives one emulator endpoint. Every facade operation opens a fresh
// monitor connection, first asking the supervisor for a live subprocess, and
// closes it before returning; connections are never reused across operations.
type Backend struct {
	spec     supervise.SpawnSpec
	sup      *supervise.Supervisor
	monCfg   monitor.Config
	readyCfg ready.Options
	logger   zerolog.Logger
}

var _ facade.Backend = (*Backend)(nil)

func New(spec supervise.SpawnSpec, sup *supervise.Supervisor) *Backend {
	return &Backend{
		spec:   spec,
		sup:    sup,
		monCfg: monitor.DefaultConfig(),
		readyCfg: ready.Options{
			Timeout:  15 * time.Second,
			Interval: 100 * time.Millisecond,
		},
		logger: log.With().Str("component", "vice").Str("addr", spec.Key()).Logger(),
	}
}

func (b *Backend) Kind() facade.Kind { return facade.KindEmulator }

// connect ensures the subprocess is live and opens one fresh connection.
func (b *Backend) connect(ctx context.Context) (*monitor.Client, error) {
	if err := b.sup.EnsureProcess(ctx, b.spec); err != nil {
		return nil, err
	}
	return monitor.Dial(ctx, b.spec.Key(), b.monCfg)
}

func (b *Backend) Ping(ctx context.Context) error {
	client, err := b.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	_, err = client.Info(ctx)
	return err
}

func (b *Backend) Version(ctx context.Context) (facade.VersionInfo, error) {
	client, err := b.connect(ctx)
	if err != nil {
		return facade.VersionInfo{}, err
	}
	defer client.Close()
	frame, err := client.Info(ctx)
	if err != nil {
		return facade.VersionInfo{}, err
	}
	return facade.VersionInfo{Version: parseVersion(frame.Body), Detail: "VICE binary monitor"}, nil
}

// parseVersion handles both the length-prefixed info layout and a bare
// major/minor byte pair.
func parseVersion(body []byte) string {
	if len(body) >= 5 && body[0] == 4 {
		return fmt.Sprintf("%d.%d.%d", body[1], body[2], body[3])
	}
	if len(body) >= 2 {
		return fmt.Sprintf("%d.%d", body[0], body[1])
	}
	return "unknown"
}

func (b *Backend) Info(ctx context.Context) (facade.MachineInfo, error) {
	if err := b.Ping(ctx); err != nil {
		return facade.MachineInfo{}, err
	}
	return facade.MachineInfo{Product: "VICE emulator", Hostname: b.spec.Key()}, nil
}

func (b *Backend) ReadMemory(ctx context.Context, address, length int) ([]byte, error) {
	if err := facade.ValidateRange(address, length); err != nil {
		return nil, err
	}
	end := address + length - 1
	if end > facade.MaxAddress {
		return nil, &facade.ValidationError{Field: "length", Reason: "range extends past 0xFFFF"}
	}
	client, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	data, err := client.MemGet(ctx, uint16(address), uint16(end))
	if err != nil {
		return nil, err
	}
	if len(data) > length {
		data = data[:length]
	}
	return data, nil
}

func (b *Backend) WriteMemory(ctx context.Context, address int, data []byte) error {
	if err := facade.ValidateRange(address, len(data)); err != nil {
		return err
	}
	if address+len(data)-1 > facade.MaxAddress {
		return &facade.ValidationError{Field: "data", Reason: "range extends past 0xFFFF"}
	}
	client, err := b.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.MemSet(ctx, uint16(address), data)
}

func (b *Backend) Reset(ctx context.Context) error {
	client, err := b.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Reset(ctx, monitor.ResetSoft); err != nil {
		return err
	}
	return client.ExitMonitor(ctx)
}

// Reboot is Reset's alias: the emulator has no distinct firmware reboot.
func (b *Backend) Reboot(ctx context.Context) error {
	return b.Reset(ctx)
}

// Pause and Resume report success without protocol calls; whether
// instruction-accurate pause is needed for hardware parity is an open
// product question.
func (b *Backend) Pause(context.Context) error  { return nil }
func (b *Backend) Resume(context.Context) error { return nil }

func (b *Backend) LoadPrgFile(ctx context.Context, path string) error {
	prg, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return b.LoadPrg(ctx, prg)
}

func (b *Backend) RunPrgFile(ctx context.Context, path string) error {
	prg, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return b.RunPrg(ctx, prg)
}

// Unsupported surface: operations only meaningful on the hardware backend.

func (b *Backend) Poweroff(context.Context) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpPoweroff)
}

func (b *Backend) MenuButton(context.Context) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpMenuButton)
}

func (b *Backend) DebugregRead(context.Context) (string, error) {
	return "", facade.Unsupported(facade.KindEmulator, facade.OpDebugregRead)
}

func (b *Backend) DebugregWrite(context.Context, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpDebugregWrite)
}

func (b *Backend) RunCrtFile(context.Context, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpRunCrt)
}

func (b *Backend) SidplayFile(context.Context, string, int) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpSidplay)
}

func (b *Backend) SidplayAttachment(context.Context, []byte, int) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpSidplay)
}

func (b *Backend) DrivesList(context.Context) ([]facade.Drive, error) {
	return nil, facade.Unsupported(facade.KindEmulator, facade.OpDrivesList)
}

func (b *Backend) DriveMount(context.Context, string, string, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpDriveMount)
}

func (b *Backend) DriveRemove(context.Context, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpDriveRemove)
}

func (b *Backend) DriveReset(context.Context, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpDriveReset)
}

func (b *Backend) DriveOn(context.Context, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpDriveOn)
}

func (b *Backend) DriveOff(context.Context, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpDriveOff)
}

func (b *Backend) DriveSetMode(context.Context, string, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpDriveSetMode)
}

func (b *Backend) DriveLoadRom(context.Context, string, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpDriveLoadRom)
}

func (b *Backend) StreamStart(context.Context, string, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpStreamStart)
}

func (b *Backend) StreamStop(context.Context, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpStreamStop)
}

func (b *Backend) ConfigsList(context.Context) ([]string, error) {
	return nil, facade.Unsupported(facade.KindEmulator, facade.OpConfigsList)
}

func (b *Backend) ConfigGet(context.Context, string) (map[string]any, error) {
	return nil, facade.Unsupported(facade.KindEmulator, facade.OpConfigGet)
}

func (b *Backend) ConfigSet(context.Context, string, string, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpConfigSet)
}

func (b *Backend) ConfigBatchUpdate(context.Context, map[string]map[string]string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpConfigBatch)
}

func (b *Backend) ConfigLoadFromFlash(context.Context) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpConfigLoadFlash)
}

func (b *Backend) ConfigSaveToFlash(context.Context) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpConfigSaveFlash)
}

func (b *Backend) ConfigResetToDefault(context.Context) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpConfigReset)
}

func (b *Backend) FilesInfo(context.Context, string) (facade.FileInfo, error) {
	return facade.FileInfo{}, facade.Unsupported(facade.KindEmulator, facade.OpFilesInfo)
}

func (b *Backend) CreateD64(context.Context, string, string, int) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpCreateDiskImage)
}

func (b *Backend) CreateD71(context.Context, string, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpCreateDiskImage)
}

func (b *Backend) CreateD81(context.Context, string, string) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpCreateDiskImage)
}

func (b *Backend) CreateDnp(context.Context, string, string, int) error {
	return facade.Unsupported(facade.KindEmulator, facade.OpCreateDiskImage)
}
