package emit

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/layout"
)

// Artifact selects what Render produces.
type Artifact string

const (
	ArtifactControl Artifact = "ctl"
	ArtifactTable   Artifact = "ddl"
	ArtifactView    Artifact = "view"
	ArtifactAll     Artifact = "all"
)

// ParseArtifact validates an artifact name.
func ParseArtifact(s string) (Artifact, error) {
	switch a := Artifact(s); a {
	case ArtifactControl, ArtifactTable, ArtifactView, ArtifactAll:
		return a, nil
	}
	return "", errors.NewInvalidRequestError("unknown artifact %q (want ctl, ddl, view or all)", s)
}

// Render returns one artifact. ArtifactAll concatenates the control file
// and the SQL script.
func Render(schema *layout.Schema, n Names, a Artifact) (string, error) {
	switch a {
	case ArtifactControl:
		return LoadControl(schema, n), nil
	case ArtifactTable:
		return TableDDL(schema, n), nil
	case ArtifactView:
		return EAVViewDDL(schema, n), nil
	case ArtifactAll:
		return LoadControl(schema, n) + "\n" + Script(schema, n), nil
	}
	return "", errors.NewInvalidRequestError("unknown artifact %q", a)
}

// Script is the table definition and the EAV view as one SQL script, each
// statement terminated by ";".
func Script(schema *layout.Schema, n Names) string {
	return TableDDL(schema, n) + ";\n" + EAVViewDDL(schema, n) + ";\n"
}

// Files are the output paths used by WriteFiles.
type Files struct {
	Control string
	Script  string
}

// DefaultFiles places naaccr_extract.ctl and naaccr_extract.sql in dir.
func DefaultFiles(dir string) Files {
	return Files{
		Control: filepath.Join(dir, "naaccr_extract.ctl"),
		Script:  filepath.Join(dir, "naaccr_extract.sql"),
	}
}

// WriteFiles writes the control file and the SQL script.
func WriteFiles(schema *layout.Schema, n Names, files Files) error {
	if err := writeFile(files.Control, LoadControl(schema, n)); err != nil {
		return err
	}
	return writeFile(files.Script, Script(schema, n))
}

// WriteTo writes artifact a to w.
func WriteTo(w io.Writer, schema *layout.Schema, n Names, a Artifact) error {
	text, err := Render(schema, n, a)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, text); err != nil {
		return errors.Wrapf(err, "failed to write %s", a)
	}
	return nil
}

func writeFile(path, text string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}
