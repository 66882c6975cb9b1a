// Package assets renders the embedded configuration templates written
// below the cluster root.
package assets

import (
	"bytes"
	"embed"
	"os"
	"path/filepath"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kubernix/kubernix/pkg/utils"
)

//go:embed templates
var content embed.FS

// Render returns the named template rendered with data. Files without a
// .tmpl suffix are returned verbatim.
func Render(name string, data any) ([]byte, error) {
	path := "templates/" + name
	payload, err := content.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "While reading embedded file %s", name)
	}
	if filepath.Ext(name) != ".tmpl" {
		return payload, nil
	}

	t, err := template.New(name).Funcs(sprig.FuncMap()).Parse(string(payload))
	if err != nil {
		return nil, errors.Wrapf(err, "While parsing template %s", name)
	}
	buf := new(bytes.Buffer)
	if err = t.Execute(buf, data); err != nil {
		return nil, errors.Wrapf(err, "While rendering template %s", name)
	}
	return buf.Bytes(), nil
}

// Write renders the named template to the target path, creating parent
// directories as needed.
func Write(name string, target string, data any, perm os.FileMode) error {
	payload, err := Render(name, data)
	if err != nil {
		return err
	}
	log.WithField("path", target).Trace("Writing rendered template")
	if err = utils.FS.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "While creating directory for %s", target)
	}
	if err = utils.FS.WriteFile(target, payload, perm); err != nil {
		return errors.Wrapf(err, "While writing %s", target)
	}
	return nil
}
