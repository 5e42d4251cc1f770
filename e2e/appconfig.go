package e2e

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ptgott/savedsync/userconfig"
)

// appConfigOptions is used to fill in a config template with details unique to
// a specific test environment. Keep this as small as possible so the input
// remains as close to a "real" YAML document as we can make it.
//
// Fields are exported so we can use them in templates.
type appConfigOptions struct {
	BackendURL string
	StorageDir string
	// Leave empty to run anonymously
	Token   string
	MaxSize string
}

// createUserConfig renders a YAML config document from opts and parses it the
// way the application would, returning the checked result.
func createUserConfig(opts appConfigOptions) (userconfig.Meta, error) {
	configTemplate := `---
keyStore:
  origin: https://news.example.com
  cookieName: saved_keys
  expiry: 8760h
{{- if .MaxSize }}
  maxSize: {{ .MaxSize }}
{{- end }}
recordCache:
  storageDir: {{ .StorageDir }}
  keyTTL: 8760h
  valueLogFileSize: 16MiB
catalog:
  baseURL: {{ .BackendURL }}
  timeout: 2s
  concurrency: "4"
{{- if .Token }}
remote:
  baseURL: {{ .BackendURL }}
  timeout: 2s
  token: {{ .Token }}
{{- end }}
`

	tmpl, err := template.New("conf").Parse(configTemplate)

	// This means the config template string was written incorrectly. Not
	// an issue with the application itself.
	if err != nil {
		return userconfig.Meta{}, fmt.Errorf("couldn't parse the application config template: %v", err)
	}

	var config bytes.Buffer
	if err := tmpl.Execute(&config, opts); err != nil {
		// This is an issue with the test environment, not the application
		return userconfig.Meta{}, fmt.Errorf("couldn't populate the application config template: %v", err)
	}

	m, err := userconfig.Parse(&config)
	if err != nil {
		return userconfig.Meta{}, fmt.Errorf("couldn't parse the application config: %v", err)
	}
	return m.CheckAndSetDefaults()
}
