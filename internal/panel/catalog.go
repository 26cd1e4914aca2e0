package panel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Endpoint names the categories and technologies the aggregator always
// touches. Paths are relative to the server's admin base URL; Selector is the
// JMESPath into the response envelope where the payload lives.
type Endpoint struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Selector string `yaml:"selector"`
}

// Catalog is the fixed set of panel endpoints one sync touches. The built-in
// catalog matches stock panel installs; a YAML file can override paths for
// builds that mount the API elsewhere, but never the set of endpoints itself.
type Catalog struct {
	AuthPath      string     `yaml:"auth_path"`
	TokenSelector string     `yaml:"token_selector"`
	Endpoints     []Endpoint `yaml:"endpoints"`
}

const settingsSelector = "data.settings"

// DefaultCatalog returns the stock endpoint layout: three category endpoints
// plus one per web publishing technology — nine fetch targets total.
func DefaultCatalog() Catalog {
	eps := []Endpoint{
		{Name: "general", Path: "/api/v2/settings/general", Selector: settingsSelector},
		{Name: "security", Path: "/api/v2/settings/security", Selector: settingsSelector},
		{Name: "email", Path: "/api/v2/settings/notifications", Selector: settingsSelector},
	}
	for _, t := range WebTechs {
		eps = append(eps, Endpoint{
			Name:     "web/" + string(t),
			Path:     "/api/v2/settings/web/" + string(t),
			Selector: settingsSelector,
		})
	}
	return Catalog{
		AuthPath:      "/api/v2/auth",
		TokenSelector: "data.token",
		Endpoints:     eps,
	}
}

// LoadCatalog reads a YAML override file. Entries only replace paths and
// selectors of known endpoints; unknown names are rejected so a typo cannot
// silently shrink the fixed set.
func LoadCatalog(path string) (Catalog, error) {
	cat := DefaultCatalog()
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	var over Catalog
	if err := yaml.Unmarshal(b, &over); err != nil {
		return Catalog{}, err
	}
	if over.AuthPath != "" {
		cat.AuthPath = over.AuthPath
	}
	if over.TokenSelector != "" {
		cat.TokenSelector = over.TokenSelector
	}
	for _, o := range over.Endpoints {
		found := false
		for i := range cat.Endpoints {
			if cat.Endpoints[i].Name != o.Name {
				continue
			}
			found = true
			if o.Path != "" {
				cat.Endpoints[i].Path = o.Path
			}
			if o.Selector != "" {
				cat.Endpoints[i].Selector = o.Selector
			}
		}
		if !found {
			return Catalog{}, fmt.Errorf("catalog override: unknown endpoint %q", o.Name)
		}
	}
	return cat, nil
}

func (c Catalog) endpoint(name string) (Endpoint, bool) {
	for _, ep := range c.Endpoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return Endpoint{}, false
}
