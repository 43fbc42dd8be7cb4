package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Iron-Ham/playground/internal/runtime"
	"github.com/Iron-Ham/playground/internal/validator"
)

// BuildRuntimes converts the runtimes section into registry entries.
// An empty section yields the built-in runtimes. An entry without a template
// borrows the built-in template of the same id, or failing that, of the
// same profile.
func (c *Config) BuildRuntimes() ([]runtime.Runtime, error) {
	builtins := runtime.Defaults()
	if len(c.Runtimes) == 0 {
		return builtins, nil
	}

	runtimes := make([]runtime.Runtime, 0, len(c.Runtimes))
	for i, entry := range c.Runtimes {
		rt := runtime.Runtime{
			ID:       entry.ID,
			Name:     entry.Name,
			Profile:  validator.Profile(strings.ToUpper(entry.Profile)),
			Template: entry.Template,
			Markers:  entry.Markers,
		}
		if rt.Name == "" {
			rt.Name = rt.ID
		}

		if entry.TemplateFile != "" {
			data, err := os.ReadFile(expandHome(entry.TemplateFile))
			if err != nil {
				return nil, fmt.Errorf("runtimes[%d].template_file: %w", i, err)
			}
			rt.Template = string(data)
		}
		if rt.Template == "" {
			rt.Template = builtinTemplate(builtins, rt.ID, rt.Profile)
		}
		runtimes = append(runtimes, rt)
	}
	return runtimes, nil
}

func builtinTemplate(builtins []runtime.Runtime, id string, profile validator.Profile) string {
	for _, b := range builtins {
		if b.ID == id {
			return b.Template
		}
	}
	for _, b := range builtins {
		if b.Profile == profile {
			return b.Template
		}
	}
	return ""
}
