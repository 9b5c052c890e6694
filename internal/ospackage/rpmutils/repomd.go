package rpmutils

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

// RepomdData is one <data> entry of repomd.xml.
type RepomdData struct {
	Type         string
	Href         string
	Checksum     ospackage.Checksum
	OpenChecksum ospackage.Checksum
	Size         int64
}

type repomdDataXML struct {
	Type     string `xml:"type,attr"`
	Location struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
	Checksum struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"checksum"`
	OpenChecksum struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"open-checksum"`
	Size int64 `xml:"size"`
}

// ParseRepomd walks repomd.xml and returns the entry of the primary
// package list.
func ParseRepomd(r io.Reader, source string) (RepomdData, error) {
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return RepomdData{}, &ospackage.MalformedMetadataError{Source: source, Reason: err.Error()}
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "data" {
			continue
		}

		var isPrimary bool
		for _, attr := range se.Attr {
			if attr.Name.Local == "type" && attr.Value == "primary" {
				isPrimary = true
				break
			}
		}
		if !isPrimary {
			if err := dec.Skip(); err != nil {
				return RepomdData{}, &ospackage.MalformedMetadataError{Source: source, Reason: fmt.Sprintf("skipping data element: %v", err)}
			}
			continue
		}

		var d repomdDataXML
		if err := dec.DecodeElement(&d, &se); err != nil {
			return RepomdData{}, &ospackage.MalformedMetadataError{Source: source, Reason: fmt.Sprintf("decoding primary entry: %v", err)}
		}
		if d.Location.Href == "" {
			return RepomdData{}, &ospackage.MalformedMetadataError{Source: source, Reason: "primary entry has no location href"}
		}
		return RepomdData{
			Type: d.Type,
			Href: d.Location.Href,
			Checksum: ospackage.Checksum{
				Algorithm: ospackage.NormalizeAlgorithm(d.Checksum.Type),
				Value:     strings.TrimSpace(d.Checksum.Value),
			},
			OpenChecksum: ospackage.Checksum{
				Algorithm: ospackage.NormalizeAlgorithm(d.OpenChecksum.Type),
				Value:     strings.TrimSpace(d.OpenChecksum.Value),
			},
			Size: d.Size,
		}, nil
	}
	return RepomdData{}, &ospackage.MalformedMetadataError{Source: source, Reason: "primary location not found"}
}

// VerifyDownload checks the primary list as served against the size and
// checksum declared in repomd.xml. Undeclared values are not checked.
func (d RepomdData) VerifyDownload(source string, raw []byte) error {
	if !d.Checksum.IsZero() {
		if err := d.Checksum.VerifyBytes(source, raw); err != nil {
			return err
		}
	}
	if d.Size > 0 && int64(len(raw)) != d.Size {
		return &ospackage.MalformedMetadataError{
			Source: source,
			Reason: fmt.Sprintf("got %d bytes, repomd.xml declares %d", len(raw), d.Size),
		}
	}
	return nil
}

// VerifyOpen checks the decompressed primary list against open-checksum.
func (d RepomdData) VerifyOpen(source string, data []byte) error {
	if d.OpenChecksum.IsZero() {
		return nil
	}
	return d.OpenChecksum.VerifyBytes(source+" (decompressed)", data)
}
