// Package plugins registers the built-in plugin families.
//
//	xml      generic XML checks with a receipt renderer
//	command  external validator (and optional renderer) commands; the
//	         receipt renderer fills in when no renderer command is given
package plugins

import (
	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
	"github.com/jemish-virani/declaratii-anaf/pkg/plugins/command"
	"github.com/jemish-virani/declaratii-anaf/pkg/plugins/receipt"
	"github.com/jemish-virani/declaratii-anaf/pkg/plugins/xmlcheck"
)

// Family names.
const (
	FamilyXML     = "xml"
	FamilyCommand = "command"
)

// Catalog returns a catalog holding every built-in family.
func Catalog() *plugin.Catalog {
	catalog := plugin.NewCatalog()
	Register(catalog)
	return catalog
}

// Register installs the built-in families into catalog.
func Register(catalog *plugin.Catalog) {
	catalog.MustRegister(FamilyXML, XML)
	catalog.MustRegister(FamilyCommand, Command)
}

// XML builds an xmlcheck validator paired with a receipt renderer.
func XML(entry plugin.Entry) (plugin.Pair, error) {
	var opts xmlcheck.Options
	if err := entry.DecodeOptions(&opts); err != nil {
		return plugin.Pair{}, err
	}
	renderer, err := receipt.FromEntry(entry)
	if err != nil {
		return plugin.Pair{}, err
	}
	return plugin.Pair{
		Validator: xmlcheck.New(entry.TypeID(), opts),
		Renderer:  renderer,
	}, nil
}

// Command builds an external-command pair.
func Command(entry plugin.Entry) (plugin.Pair, error) {
	validator, renderer, err := command.Build(entry)
	if err != nil {
		return plugin.Pair{}, err
	}
	if renderer != nil {
		return plugin.Pair{Validator: validator, Renderer: renderer}, nil
	}
	fallback, err := receipt.FromEntry(entry)
	if err != nil {
		return plugin.Pair{}, err
	}
	return plugin.Pair{Validator: validator, Renderer: fallback}, nil
}
