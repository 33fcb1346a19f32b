package transaction

import (
	"bytes"
	"fmt"
	"io"
	"time"

	spdxjson "github.com/spdx/tools-golang/json"
	v2common "github.com/spdx/tools-golang/spdx/v2/common"
	"github.com/spdx/tools-golang/spdx/v2/v2_3"

	condacore "github.com/condacore/conda-core"
)

// SBOMEncoder renders a prefix's installed packages as an SPDX document.
type SBOMEncoder struct {
	Creators          []v2common.Creator
	DocumentName      string
	DocumentNamespace string
}

// Encode writes an SPDX v2.3 JSON document describing records to w.
func (e *SBOMEncoder) Encode(w io.Writer, records []condacore.PrefixRecord) error {
	doc := &v2_3.Document{
		SPDXVersion:       v2_3.Version,
		DataLicense:       v2_3.DataLicense,
		SPDXIdentifier:    "DOCUMENT",
		DocumentName:      e.DocumentName,
		DocumentNamespace: e.DocumentNamespace,
		CreationInfo: &v2_3.CreationInfo{
			Creators: e.Creators,
			Created:  time.Now().Format("2006-01-02T15:04:05Z"),
		},
	}

	pkgs := make([]*v2_3.Package, 0, len(records))
	for i, rec := range records {
		id := v2common.ElementID(fmt.Sprintf("Package-%d", i))
		pkg := &v2_3.Package{
			PackageName:             rec.Name,
			PackageSPDXIdentifier:   id,
			PackageVersion:          rec.Version,
			PackageDownloadLocation: "NOASSERTION",
			PackageExternalReferences: []*v2_3.PackageExternalReference{{
				Category: "PACKAGE-MANAGER",
				RefType:  "purl",
				Locator:  rec.PURL(),
			}},
		}
		if !rec.SHA256.IsZero() {
			pkg.PackageChecksums = []v2common.Checksum{{
				Algorithm: v2common.ChecksumAlgorithmSHA256,
				Value:     rec.SHA256.String(),
			}}
		}
		pkgs = append(pkgs, pkg)
	}
	doc.Packages = pkgs

	buf := &bytes.Buffer{}
	if err := spdxjson.Write(doc, buf); err != nil {
		return fmt.Errorf("transaction: encoding SPDX document: %w", err)
	}
	_, err := io.Copy(w, buf)
	return err
}
