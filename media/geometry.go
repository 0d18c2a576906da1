// Package media holds predefined disk geometries historically used to carry
// RedSea images, for sizing a freshly formatted volume from `redseafsutil
// mkfs --geometry <slug>`.
package media

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/puckipedia/RedSeaFS/volume"
)

// DiskGeometry describes one historical floppy or fixed-disk layout.
type DiskGeometry struct {
	Name               string `csv:"name"`
	Slug               string `csv:"slug"`
	FirstYearAvailable uint   `csv:"first_year_available"`
	FormFactor         string `csv:"form_factor"`
	IsRemovable        uint   `csv:"is_removable"`

	BitsPerAddressUnit    uint `csv:"bits_per_address_unit"`
	AddressUnitsPerSector uint `csv:"address_units_per_sector"`
	SectorsPerTrack       uint `csv:"sectors_per_track"`
	TotalDataTracks       uint `csv:"total_data_tracks"`
	Heads                 uint `csv:"heads"`
	Notes                 string `csv:"notes"`
}

// TotalSizeBytes gives the size of the medium, rounded up to the nearest
// byte.
func (g *DiskGeometry) TotalSizeBytes() int64 {
	bits := int64(g.BitsPerAddressUnit * g.AddressUnitsPerSector *
		g.SectorsPerTrack * g.TotalDataTracks * g.Heads)
	if bits%8 == 0 {
		return bits / 8
	}
	return bits/8 + 1
}

// TotalSectors gives the medium's capacity in 512-byte RedSea sectors,
// rounded up.
func (g *DiskGeometry) TotalSectors() uint64 {
	return volume.SectorsFor(uint64(g.TotalSizeBytes()))
}

//go:embed disk-geometries.csv
var diskGeometriesRawCSV string

var diskGeometries = map[string]DiskGeometry{}

// GetPredefinedGeometry looks up a geometry by its slug (e.g. "3.5-inch-hd").
func GetPredefinedGeometry(slug string) (DiskGeometry, error) {
	geometry, ok := diskGeometries[slug]
	if !ok {
		return DiskGeometry{}, fmt.Errorf("no predefined disk geometry exists with slug %q", slug)
	}
	return geometry, nil
}

func init() {
	reader := strings.NewReader(diskGeometriesRawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row DiskGeometry) error {
		if _, exists := diskGeometries[row.Slug]; exists {
			return fmt.Errorf("duplicate definition for disk %q", row.Slug)
		}
		diskGeometries[row.Slug] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}
