package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "hardware":
		return hardwareTemplate, nil
	case "emulator":
		return emulatorTemplate, nil
	case "full":
		return fullTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const hardwareTemplate = `[hardware]
host = "c64u"
port = 80

[serve]
addr = ":8064"
cors_origins = ["http://localhost:3000"]
`

const emulatorTemplate = `[emulator]
exe = ""
host = "127.0.0.1"
port = 6502

[serve]
addr = ":8064"
cors_origins = ["http://localhost:3000"]
`

const fullTemplate = `[hardware]
# base_url wins over host/hostname when set.
base_url = ""
host = "c64u"
port = 80

[emulator]
exe = ""
host = "127.0.0.1"
port = 6502

[serve]
addr = ":8064"
cors_origins = ["http://localhost:3000"]
`
