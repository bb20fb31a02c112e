package addressbase

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/LandRegistry/address-search-api/internal/index"
)

// ErrUnknownChangeType reports an address record whose change type is none
// of I, U or D. The upstream format leaves this case undefined; translation
// refuses to guess and the importer skips the group.
var ErrUnknownChangeType = errors.New("unknown change type")

// joinedFieldOrder fixes the address components, in order, that combine into
// the joined_fields search string.
var joinedFieldOrder = []func(DPA) string{
	func(d DPA) string { return d.SubBuildingName },
	func(d DPA) string { return d.BuildingName },
	func(d DPA) string { return d.BuildingNumber },
	func(d DPA) string { return d.DependentThoroughfareName },
	func(d DPA) string { return d.ThoroughfareName },
	func(d DPA) string { return d.DoubleDependentLocality },
	func(d DPA) string { return d.DependentLocality },
	func(d DPA) string { return d.PostTown },
	func(d DPA) string { return d.Postcode },
}

// JoinedFields concatenates the non-empty address components in the fixed
// field order, separated by ", ".
func JoinedFields(d DPA) string {
	parts := make([]string, 0, len(joinedFieldOrder))
	for _, field := range joinedFieldOrder {
		if v := field(d); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// Translate expands one valid property group into one mutation per indexed
// view, shaped by the address record's change type. It is a pure
// transformation; all I/O belongs to the submitter.
func Translate(g Group, entryDatetime string) ([]index.Mutation, error) {
	var op index.Op
	switch g.Address.ChangeType {
	case ChangeInsert:
		op = index.OpInsert
	case ChangeUpdate:
		op = index.OpUpdate
	case ChangeDelete:
		op = index.OpDelete
	default:
		return nil, fmt.Errorf("uprn %s: %w %q", g.UPRN, ErrUnknownChangeType, g.Address.ChangeType)
	}

	var doc *index.Document
	if op != index.OpDelete {
		built, err := buildDocument(g, entryDatetime)
		if err != nil {
			return nil, err
		}
		doc = built
	}

	mutations := make([]index.Mutation, 0, len(index.Views))
	for _, view := range index.Views {
		mutations = append(mutations, index.Mutation{
			Op:   op,
			View: view,
			ID:   g.UPRN,
			Doc:  doc,
		})
	}
	return mutations, nil
}

// buildDocument projects the group onto the denormalized indexed document.
// Coordinates default to (0, 0) when the group carries no coordinate record.
func buildDocument(g Group, entryDatetime string) (*index.Document, error) {
	var x, y float64
	if g.Coordinate != nil {
		var err error
		x, err = strconv.ParseFloat(g.Coordinate.XCoordinate, 64)
		if err != nil {
			return nil, fmt.Errorf("uprn %s: parse x_coordinate %q: %w", g.UPRN, g.Coordinate.XCoordinate, err)
		}
		y, err = strconv.ParseFloat(g.Coordinate.YCoordinate, 64)
		if err != nil {
			return nil, fmt.Errorf("uprn %s: parse y_coordinate %q: %w", g.UPRN, g.Coordinate.YCoordinate, err)
		}
	}

	a := g.Address
	return &index.Document{
		UPRN:                      a.UPRN,
		OrganisationName:          a.OrganisationName,
		DepartmentName:            a.DepartmentName,
		SubBuildingName:           a.SubBuildingName,
		BuildingName:              a.BuildingName,
		BuildingNumber:            a.BuildingNumber,
		DependentThoroughfareName: a.DependentThoroughfareName,
		ThoroughfareName:          a.ThoroughfareName,
		DoubleDependentLocality:   a.DoubleDependentLocality,
		DependentLocality:         a.DependentLocality,
		PostTown:                  a.PostTown,
		Postcode:                  a.Postcode,
		JoinedFields:              JoinedFields(a),
		XCoordinate:               x,
		YCoordinate:               y,
		EntryDatetime:             entryDatetime,
	}, nil
}
