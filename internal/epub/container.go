package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ErrNoRootfile is returned when META-INF/container.xml is missing or
// names no rootfile.
var ErrNoRootfile = errors.New("epub: no rootfile in META-INF/container.xml")

type containerXML struct {
	XMLName  xml.Name `xml:"urn:oasis:names:tc:opendocument:xmlns:container container"`
	Version  string   `xml:"version,attr"`
	Rootfile struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// buildContainerXML renders META-INF/container.xml pointing at opfPath.
func buildContainerXML(opfPath string) []byte {
	c := containerXML{Version: "1.0"}
	c.Rootfile.FullPath = opfPath
	c.Rootfile.MediaType = "application/oebps-package+xml"
	data, _ := xml.MarshalIndent(c, "", "  ")
	return append([]byte(xml.Header), data...)
}

// readContainerXML locates and parses META-INF/container.xml inside zr,
// returning the package document's path within the archive.
func readContainerXML(zr *zip.Reader) (string, error) {
	for _, f := range zr.File {
		if f.Name != "META-INF/container.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("epub: open container.xml: %w", err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("epub: read container.xml: %w", err)
		}
		var c containerXML
		if err := xml.Unmarshal(data, &c); err != nil {
			return "", fmt.Errorf("epub: parse container.xml: %w", err)
		}
		if c.Rootfile.FullPath == "" {
			return "", ErrNoRootfile
		}
		return c.Rootfile.FullPath, nil
	}
	return "", ErrNoRootfile
}
