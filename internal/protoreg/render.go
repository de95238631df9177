package protoreg

import (
	"io"
	"os"
	"path"

	"github.com/jhump/protoreflect/v2/protoprint"
)

// Render prints every service file of r to w, separated by blank lines.
func Render(r *Registry, w io.Writer) error {
	pp := protoprint.Printer{}
	for i, fd := range r.GetAllServiceFiles() {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := pp.PrintProtoFile(fd, w); err != nil {
			return err
		}
	}
	return nil
}

// RenderDir writes every service file of r under outDir at its proto path.
func RenderDir(r *Registry, outDir string) error {
	pp := protoprint.Printer{}
	for _, fd := range r.GetAllServiceFiles() {
		fp := path.Join(outDir, fd.Path())
		if err := os.MkdirAll(path.Dir(fp), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		err = pp.PrintProtoFile(fd, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
