package facade

import "context"

// Kind names the active backend family.
type Kind string

const (
	KindHardware Kind = "hardware"
	KindEmulator Kind = "emulator"
)

// VersionInfo is the device software identification.
type VersionInfo struct {
	Version string `json:"version"`
	Detail  string `json:"detail,omitempty"`
}

// MachineInfo is the device self-description returned by Info.
type MachineInfo struct {
	Product  string `json:"product"`
	Hostname string `json:"hostname,omitempty"`
	Unique   string `json:"unique,omitempty"`
}

// Drive describes one attached drive slot.
type Drive struct {
	ID      string `json:"id"`
	Type    string `json:"type,omitempty"`
	Enabled bool   `json:"enabled"`
	Image   string `json:"image,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

// FileInfo describes one file on device-managed storage.
type FileInfo struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Extension string `json:"extension,omitempty"`
}

// Backend is the uniform operation surface presented to callers regardless
// of which transport is active. Implementations return
// UnsupportedOperationError for operations the target cannot express.
type Backend interface {
	Kind() Kind

	Ping(ctx context.Context) error
	Version(ctx context.Context) (VersionInfo, error)
	Info(ctx context.Context) (MachineInfo, error)

	// RunPrg loads and starts a PRG image: 2-byte little-endian load
	// address followed by the raw memory body.
	RunPrg(ctx context.Context, prg []byte) error
	// LoadPrg loads a PRG image without starting it.
	LoadPrg(ctx context.Context, prg []byte) error
	LoadPrgFile(ctx context.Context, path string) error
	RunPrgFile(ctx context.Context, path string) error
	RunCrtFile(ctx context.Context, path string) error
	SidplayFile(ctx context.Context, path string, song int) error
	SidplayAttachment(ctx context.Context, data []byte, song int) error

	ReadMemory(ctx context.Context, address, length int) ([]byte, error)
	WriteMemory(ctx context.Context, address int, data []byte) error

	Reset(ctx context.Context) error
	Reboot(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Poweroff(ctx context.Context) error
	MenuButton(ctx context.Context) error

	DebugregRead(ctx context.Context) (string, error)
	DebugregWrite(ctx context.Context, value string) error

	DrivesList(ctx context.Context) ([]Drive, error)
	DriveMount(ctx context.Context, drive, image, mode string) error
	DriveRemove(ctx context.Context, drive string) error
	DriveReset(ctx context.Context, drive string) error
	DriveOn(ctx context.Context, drive string) error
	DriveOff(ctx context.Context, drive string) error
	DriveSetMode(ctx context.Context, drive, mode string) error
	DriveLoadRom(ctx context.Context, drive, romPath string) error

	StreamStart(ctx context.Context, stream, destination string) error
	StreamStop(ctx context.Context, stream string) error

	ConfigsList(ctx context.Context) ([]string, error)
	ConfigGet(ctx context.Context, category string) (map[string]any, error)
	ConfigSet(ctx context.Context, category, item, value string) error
	ConfigBatchUpdate(ctx context.Context, updates map[string]map[string]string) error
	ConfigLoadFromFlash(ctx context.Context) error
	ConfigSaveToFlash(ctx context.Context) error
	ConfigResetToDefault(ctx context.Context) error

	FilesInfo(ctx context.Context, path string) (FileInfo, error)
	CreateD64(ctx context.Context, path, label string, tracks int) error
	CreateD71(ctx context.Context, path, label string) error
	CreateD81(ctx context.Context, path, label string) error
	CreateDnp(ctx context.Context, path, label string, sizeMB int) error
}

// MaxAddress is the highest addressable byte on the target machine.
const MaxAddress = 0xFFFF

// ValidateRange rejects memory ranges before any network traffic.
func ValidateRange(address, length int) error {
	if address < 0 || address > MaxAddress {
		return &ValidationError{Field: "address", Reason: "outside 0..0xFFFF"}
	}
	if length <= 0 {
		return &ValidationError{Field: "length", Reason: "must be positive"}
	}
	return nil
}
