package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sourceplane/msub/internal/model"
	"github.com/sourceplane/msub/internal/schema"
	"gopkg.in/yaml.v3"
)

// ProfileEnv names the environment variable holding the default profile path
const ProfileEnv = "MSUB_PROFILE"

// Profile holds site defaults. Nil fields were not set in the file.
type Profile struct {
	Queue          *string `yaml:"queue"`
	Priority       *int    `yaml:"priority"`
	StdoutDir      *string `yaml:"stdoutdir"`
	CPU            *int    `yaml:"cpu"`
	Mem            *int    `yaml:"mem"`
	NoEmail        *bool   `yaml:"noemail"`
	MaxRunningTask *int    `yaml:"max_running_task"`
	Begin          *string `yaml:"begin"`
	Final          *string `yaml:"final"`
}

// LoadProfile reads and validates a profile file. An empty path yields an
// empty profile. A missing file is an error only when required is set, so the
// path from MSUB_PROFILE may point at nothing.
func LoadProfile(path string, required bool) (*Profile, error) {
	if path == "" {
		return &Profile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateProfile(data); err != nil {
		return nil, fmt.Errorf("profile %s failed validation: %w", path, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile YAML: %w", err)
	}
	return &profile, nil
}

// Apply copies every value set in the profile onto cfg, except for the fields
// listed in skip (keyed by YAML name), which were given explicitly.
func (p *Profile) Apply(cfg *model.JobConfig, skip map[string]bool) {
	if p == nil {
		return
	}
	setString(&cfg.Queue, p.Queue, skip["queue"])
	setInt(&cfg.Priority, p.Priority, skip["priority"])
	setString(&cfg.StdoutDir, p.StdoutDir, skip["stdoutdir"])
	setInt(&cfg.CPU, p.CPU, skip["cpu"])
	setInt(&cfg.Mem, p.Mem, skip["mem"])
	setInt(&cfg.MaxRunningTask, p.MaxRunningTask, skip["max_running_task"])
	setString(&cfg.Begin, p.Begin, skip["begin"])
	setString(&cfg.Final, p.Final, skip["final"])
	if p.NoEmail != nil && !skip["noemail"] {
		cfg.NoEmail = *p.NoEmail
	}
}

func setString(dst *string, v *string, skip bool) {
	if v != nil && !skip {
		*dst = *v
	}
}

func setInt(dst *int, v *int, skip bool) {
	if v != nil && !skip {
		*dst = *v
	}
}
