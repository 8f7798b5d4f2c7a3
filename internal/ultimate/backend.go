// Package ultimate implements the device facade over the REST API exposed by
// Ultimate 64 / Ultimate-II+ firmware.
package ultimate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/retrolab/c64bridge/internal/facade"
)

// Config tunes the REST client.
type Config struct {
	// BaseURL is the device root, scheme included, e.g. "http://c64u".
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// StatusError is a non-2xx reply from the device.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ultimate: %s %s: device returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Backend drives one hardware device over its REST API. It is stateless
// between calls; every operation is one HTTP round trip.
type Backend struct {
	base   string
	client *http.Client
	logger zerolog.Logger
}

var _ facade.Backend = (*Backend)(nil)

func New(cfg Config) *Backend {
	cfg = cfg.WithDefaults()
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &Backend{
		base:   base,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log.With().Str("component", "ultimate").Str("base_url", base).Logger(),
	}
}

func (b *Backend) Kind() facade.Kind { return facade.KindHardware }

// BaseURL reports the resolved device root, for selection diagnostics.
func (b *Backend) BaseURL() string { return b.base }

func (b *Backend) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	u := b.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ultimate: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("ultimate: %s %s: reading body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	return payload, nil
}

func (b *Backend) getJSON(ctx context.Context, path string, out any) error {
	payload, err := b.do(ctx, http.MethodGet, path, nil, nil, "")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("ultimate: decoding %s: %w", path, err)
	}
	return nil
}

func (b *Backend) put(ctx context.Context, path string, query url.Values) error {
	_, err := b.do(ctx, http.MethodPut, path, query, nil, "")
	return err
}

func (b *Backend) postData(ctx context.Context, path string, query url.Values, data []byte) error {
	_, err := b.do(ctx, http.MethodPost, path, query, bytes.NewReader(data), "application/octet-stream")
	return err
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.getJSON(ctx, "/v1/version", nil)
}

func (b *Backend) Version(ctx context.Context) (facade.VersionInfo, error) {
	var body struct {
		Version string `json:"version"`
	}
	if err := b.getJSON(ctx, "/v1/version", &body); err != nil {
		return facade.VersionInfo{}, err
	}
	return facade.VersionInfo{Version: body.Version, Detail: "Ultimate REST API"}, nil
}

func (b *Backend) Info(ctx context.Context) (facade.MachineInfo, error) {
	var body struct {
		Product  string `json:"product"`
		Hostname string `json:"hostname"`
		UniqueID string `json:"unique_id"`
	}
	if err := b.getJSON(ctx, "/v1/info", &body); err != nil {
		return facade.MachineInfo{}, err
	}
	return facade.MachineInfo{Product: body.Product, Hostname: body.Hostname, Unique: body.UniqueID}, nil
}

func (b *Backend) RunPrg(ctx context.Context, prg []byte) error {
	if len(prg) < 2 {
		return &facade.ValidationError{Field: "prg", Reason: "shorter than the 2-byte load address"}
	}
	return b.postData(ctx, "/v1/runners:run_prg", nil, prg)
}

func (b *Backend) LoadPrg(ctx context.Context, prg []byte) error {
	if len(prg) < 2 {
		return &facade.ValidationError{Field: "prg", Reason: "shorter than the 2-byte load address"}
	}
	return b.postData(ctx, "/v1/runners:load_prg", nil, prg)
}

func (b *Backend) RunPrgFile(ctx context.Context, path string) error {
	prg, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return b.RunPrg(ctx, prg)
}

func (b *Backend) LoadPrgFile(ctx context.Context, path string) error {
	prg, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return b.LoadPrg(ctx, prg)
}

func (b *Backend) RunCrtFile(ctx context.Context, path string) error {
	crt, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return b.postData(ctx, "/v1/runners:run_crt", nil, crt)
}

func (b *Backend) SidplayFile(ctx context.Context, path string, song int) error {
	sid, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return b.SidplayAttachment(ctx, sid, song)
}

func (b *Backend) SidplayAttachment(ctx context.Context, data []byte, song int) error {
	q := url.Values{}
	if song > 0 {
		q.Set("songnr", strconv.Itoa(song))
	}
	return b.postData(ctx, "/v1/runners:sidplay", q, data)
}

func (b *Backend) ReadMemory(ctx context.Context, address, length int) ([]byte, error) {
	if err := facade.ValidateRange(address, length); err != nil {
		return nil, err
	}
	if address+length-1 > facade.MaxAddress {
		return nil, &facade.ValidationError{Field: "length", Reason: "range extends past 0xFFFF"}
	}
	q := url.Values{}
	q.Set("address", fmt.Sprintf("%04x", address))
	q.Set("length", strconv.Itoa(length))
	return b.do(ctx, http.MethodGet, "/v1/machine:readmem", q, nil, "")
}

func (b *Backend) WriteMemory(ctx context.Context, address int, data []byte) error {
	if err := facade.ValidateRange(address, len(data)); err != nil {
		return err
	}
	if address+len(data)-1 > facade.MaxAddress {
		return &facade.ValidationError{Field: "data", Reason: "range extends past 0xFFFF"}
	}
	q := url.Values{}
	q.Set("address", fmt.Sprintf("%04x", address))
	_, err := b.do(ctx, http.MethodPut, "/v1/machine:writemem", q, bytes.NewReader(data), "application/octet-stream")
	return err
}

func (b *Backend) Reset(ctx context.Context) error  { return b.put(ctx, "/v1/machine:reset", nil) }
func (b *Backend) Reboot(ctx context.Context) error { return b.put(ctx, "/v1/machine:reboot", nil) }
func (b *Backend) Pause(ctx context.Context) error  { return b.put(ctx, "/v1/machine:pause", nil) }
func (b *Backend) Resume(ctx context.Context) error { return b.put(ctx, "/v1/machine:resume", nil) }

func (b *Backend) Poweroff(ctx context.Context) error {
	return b.put(ctx, "/v1/machine:poweroff", nil)
}

func (b *Backend) MenuButton(ctx context.Context) error {
	return b.put(ctx, "/v1/machine:menu_button", nil)
}

func (b *Backend) DebugregRead(ctx context.Context) (string, error) {
	var body struct {
		Value string `json:"value"`
	}
	if err := b.getJSON(ctx, "/v1/machine:debugreg", &body); err != nil {
		return "", err
	}
	return body.Value, nil
}

func (b *Backend) DebugregWrite(ctx context.Context, value string) error {
	q := url.Values{}
	q.Set("value", value)
	return b.put(ctx, "/v1/machine:debugreg", q)
}

func (b *Backend) DrivesList(ctx context.Context) ([]facade.Drive, error) {
	var body struct {
		Drives []struct {
			Drive     string `json:"drive"`
			Type      string `json:"type"`
			Enabled   bool   `json:"enabled"`
			ImageFile string `json:"image_file"`
			Mode      string `json:"mode"`
		} `json:"drives"`
	}
	if err := b.getJSON(ctx, "/v1/drives", &body); err != nil {
		return nil, err
	}
	drives := make([]facade.Drive, 0, len(body.Drives))
	for _, d := range body.Drives {
		drives = append(drives, facade.Drive{
			ID: d.Drive, Type: d.Type, Enabled: d.Enabled, Image: d.ImageFile, Mode: d.Mode,
		})
	}
	return drives, nil
}

func (b *Backend) DriveMount(ctx context.Context, drive, image, mode string) error {
	q := url.Values{}
	q.Set("image", image)
	if mode != "" {
		q.Set("mode", mode)
	}
	return b.put(ctx, "/v1/drives/"+url.PathEscape(drive)+":mount", q)
}

func (b *Backend) DriveRemove(ctx context.Context, drive string) error {
	return b.put(ctx, "/v1/drives/"+url.PathEscape(drive)+":remove", nil)
}

func (b *Backend) DriveReset(ctx context.Context, drive string) error {
	return b.put(ctx, "/v1/drives/"+url.PathEscape(drive)+":reset", nil)
}

func (b *Backend) DriveOn(ctx context.Context, drive string) error {
	return b.put(ctx, "/v1/drives/"+url.PathEscape(drive)+":on", nil)
}

func (b *Backend) DriveOff(ctx context.Context, drive string) error {
	return b.put(ctx, "/v1/drives/"+url.PathEscape(drive)+":off", nil)
}

func (b *Backend) DriveSetMode(ctx context.Context, drive, mode string) error {
	q := url.Values{}
	q.Set("mode", mode)
	return b.put(ctx, "/v1/drives/"+url.PathEscape(drive)+":set_mode", q)
}

func (b *Backend) DriveLoadRom(ctx context.Context, drive, romPath string) error {
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return err
	}
	_, err = b.do(ctx, http.MethodPost, "/v1/drives/"+url.PathEscape(drive)+":load_rom", nil, bytes.NewReader(rom), "application/octet-stream")
	return err
}

func (b *Backend) StreamStart(ctx context.Context, stream, destination string) error {
	q := url.Values{}
	if destination != "" {
		q.Set("ip", destination)
	}
	return b.put(ctx, "/v1/streams/"+url.PathEscape(stream)+":start", q)
}

func (b *Backend) StreamStop(ctx context.Context, stream string) error {
	return b.put(ctx, "/v1/streams/"+url.PathEscape(stream)+":stop", nil)
}

func (b *Backend) ConfigsList(ctx context.Context) ([]string, error) {
	var body struct {
		Categories []string `json:"categories"`
	}
	if err := b.getJSON(ctx, "/v1/configs", &body); err != nil {
		return nil, err
	}
	return body.Categories, nil
}

func (b *Backend) ConfigGet(ctx context.Context, category string) (map[string]any, error) {
	var body map[string]any
	if err := b.getJSON(ctx, "/v1/configs/"+url.PathEscape(category), &body); err != nil {
		return nil, err
	}
	return body, nil
}

func (b *Backend) ConfigSet(ctx context.Context, category, item, value string) error {
	q := url.Values{}
	q.Set("value", value)
	return b.put(ctx, "/v1/configs/"+url.PathEscape(category)+"/"+url.PathEscape(item), q)
}

func (b *Backend) ConfigBatchUpdate(ctx context.Context, updates map[string]map[string]string) error {
	payload, err := json.Marshal(updates)
	if err != nil {
		return err
	}
	_, err = b.do(ctx, http.MethodPost, "/v1/configs", nil, bytes.NewReader(payload), "application/json")
	return err
}

func (b *Backend) ConfigLoadFromFlash(ctx context.Context) error {
	return b.put(ctx, "/v1/configs:load_from_flash", nil)
}

func (b *Backend) ConfigSaveToFlash(ctx context.Context) error {
	return b.put(ctx, "/v1/configs:save_to_flash", nil)
}

func (b *Backend) ConfigResetToDefault(ctx context.Context) error {
	return b.put(ctx, "/v1/configs:reset_to_default", nil)
}

func (b *Backend) FilesInfo(ctx context.Context, path string) (facade.FileInfo, error) {
	var body struct {
		Path      string `json:"path"`
		Size      int64  `json:"size"`
		Extension string `json:"extension"`
	}
	if err := b.getJSON(ctx, "/v1/files/"+escapeFilePath(path)+":info", &body); err != nil {
		return facade.FileInfo{}, err
	}
	return facade.FileInfo{Path: body.Path, Size: body.Size, Extension: body.Extension}, nil
}

func (b *Backend) CreateD64(ctx context.Context, path, label string, tracks int) error {
	q := url.Values{}
	q.Set("diskname", label)
	if tracks > 0 {
		q.Set("tracks", strconv.Itoa(tracks))
	}
	return b.put(ctx, "/v1/files/"+escapeFilePath(path)+":create_d64", q)
}

func (b *Backend) CreateD71(ctx context.Context, path, label string) error {
	q := url.Values{}
	q.Set("diskname", label)
	return b.put(ctx, "/v1/files/"+escapeFilePath(path)+":create_d71", q)
}

func (b *Backend) CreateD81(ctx context.Context, path, label string) error {
	q := url.Values{}
	q.Set("diskname", label)
	return b.put(ctx, "/v1/files/"+escapeFilePath(path)+":create_d81", q)
}

func (b *Backend) CreateDnp(ctx context.Context, path, label string, sizeMB int) error {
	q := url.Values{}
	q.Set("diskname", label)
	q.Set("size", strconv.Itoa(sizeMB))
	return b.put(ctx, "/v1/files/"+escapeFilePath(path)+":create_dnp", q)
}

// escapeFilePath escapes each segment of a device path while keeping the
// slashes that address nested directories.
func escapeFilePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
