// Package addressbase implements the AddressBase change-file import
// pipeline: positional record decoding, per-property grouping, translation
// into index mutations, and the bulk submission of one import run.
//
// Record shapes follow the AddressBase Premium CSV technical specification:
// https://www.ordnancesurvey.co.uk/docs/technical-specifications/addressbase-premium-technical-specification-csv.pdf
package addressbase

import "fmt"

// Record identifier codes. The first column of every row carries one of
// these; rows with any other code are not decoded.
const (
	TypeHeader = 10 // header record (contains entry date)
	TypeBLPU   = 21 // Basic Land and Property Unit (contains coordinates)
	TypeDPA    = 28 // Delivery Point Address (contains addresses)
)

// Column indexes common to every non-header record.
const (
	colRecordIdentifier = 0
	colChangeType       = 1
	colUPRN             = 3
)

// Change type values carried by BLPU and DPA records.
const (
	ChangeInsert = "I"
	ChangeUpdate = "U"
	ChangeDelete = "D"
)

// FormatError reports a malformed input file: a row with the wrong number of
// fields for its record type, or a missing or misplaced header. It is fatal
// to an import run.
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// Header is the single format header record at the start of every change
// file. Its entry date and timestamp combine into the entry datetime stamped
// on every document of the run.
type Header struct {
	RecordIdentifier   string
	CustodianName      string
	LocalCustodianCode string
	ProcessDate        string
	VolumeNumber       string
	EntryDate          string
	TimeStamp          string
	Version            string
	FileType           string
}

// EntryDatetime combines the header's entry date and timestamp in
// date_time_no_millis format. The source data carries no timezone; UTC is
// assumed.
func (h Header) EntryDatetime() string {
	return h.EntryDate + "T" + h.TimeStamp + "+00"
}

// BLPU is the coordinate-bearing record. At most one per property group.
type BLPU struct {
	RecordIdentifier   string
	ChangeType         string
	ProOrder           string
	UPRN               string
	LogicalStatus      string
	BLPUState          string
	BLPUStateDate      string
	ParentUPRN         string
	XCoordinate        string
	YCoordinate        string
	RPC                string
	LocalCustodianCode string
	StartDate          string
	EndDate            string
	LastUpdateDate     string
	EntryDate          string
	PostalAddress      string
	PostcodeLocator    string
	MultiOccCount      string
}

// DPA is the address-bearing record. Exactly one per valid property group.
type DPA struct {
	RecordIdentifier               string
	ChangeType                     string
	ProOrder                       string
	UPRN                           string
	ParentAddressableUPRN          string
	RMUDPRN                        string
	OrganisationName               string
	DepartmentName                 string
	SubBuildingName                string
	BuildingName                   string
	BuildingNumber                 string
	DependentThoroughfareName      string
	ThoroughfareName               string
	DoubleDependentLocality        string
	DependentLocality              string
	PostTown                       string
	Postcode                       string
	PostcodeType                   string
	WelshDependentThoroughfareName string
	WelshThoroughfareName          string
	WelshDoubleDependentLocality   string
	WelshDependentLocality         string
	WelshPostTown                  string
	POBoxNumber                    string
	ProcessDate                    string
	StartDate                      string
	EndDate                        string
	LastUpdateDate                 string
	EntryDate                      string
}

// Group is the transient aggregate of the rows sharing one UPRN: exactly one
// address record and an optional coordinate record.
type Group struct {
	UPRN       string
	Address    DPA
	Coordinate *BLPU
}

const (
	headerFieldCount = 9
	blpuFieldCount   = 19
	dpaFieldCount    = 29
)

// DecodeHeader maps a raw row onto a Header, validating the field count
// before positional assignment.
func DecodeHeader(row []string, line int) (Header, error) {
	if len(row) != headerFieldCount {
		return Header{}, &FormatError{Line: line,
			Msg: fmt.Sprintf("header record needs %d fields, got %d", headerFieldCount, len(row))}
	}
	return Header{
		RecordIdentifier:   row[0],
		CustodianName:      row[1],
		LocalCustodianCode: row[2],
		ProcessDate:        row[3],
		VolumeNumber:       row[4],
		EntryDate:          row[5],
		TimeStamp:          row[6],
		Version:            row[7],
		FileType:           row[8],
	}, nil
}

// DecodeBLPU maps a raw row onto a BLPU, validating the field count before
// positional assignment.
func DecodeBLPU(row []string, line int) (BLPU, error) {
	if len(row) != blpuFieldCount {
		return BLPU{}, &FormatError{Line: line,
			Msg: fmt.Sprintf("BLPU record needs %d fields, got %d", blpuFieldCount, len(row))}
	}
	return BLPU{
		RecordIdentifier:   row[0],
		ChangeType:         row[1],
		ProOrder:           row[2],
		UPRN:               row[3],
		LogicalStatus:      row[4],
		BLPUState:          row[5],
		BLPUStateDate:      row[6],
		ParentUPRN:         row[7],
		XCoordinate:        row[8],
		YCoordinate:        row[9],
		RPC:                row[10],
		LocalCustodianCode: row[11],
		StartDate:          row[12],
		EndDate:            row[13],
		LastUpdateDate:     row[14],
		EntryDate:          row[15],
		PostalAddress:      row[16],
		PostcodeLocator:    row[17],
		MultiOccCount:      row[18],
	}, nil
}

// DecodeDPA maps a raw row onto a DPA, validating the field count before
// positional assignment.
func DecodeDPA(row []string, line int) (DPA, error) {
	if len(row) != dpaFieldCount {
		return DPA{}, &FormatError{Line: line,
			Msg: fmt.Sprintf("DPA record needs %d fields, got %d", dpaFieldCount, len(row))}
	}
	return DPA{
		RecordIdentifier:               row[0],
		ChangeType:                     row[1],
		ProOrder:                       row[2],
		UPRN:                           row[3],
		ParentAddressableUPRN:          row[4],
		RMUDPRN:                        row[5],
		OrganisationName:               row[6],
		DepartmentName:                 row[7],
		SubBuildingName:                row[8],
		BuildingName:                   row[9],
		BuildingNumber:                 row[10],
		DependentThoroughfareName:      row[11],
		ThoroughfareName:               row[12],
		DoubleDependentLocality:        row[13],
		DependentLocality:              row[14],
		PostTown:                       row[15],
		Postcode:                       row[16],
		PostcodeType:                   row[17],
		WelshDependentThoroughfareName: row[18],
		WelshThoroughfareName:          row[19],
		WelshDoubleDependentLocality:   row[20],
		WelshDependentLocality:         row[21],
		WelshPostTown:                  row[22],
		POBoxNumber:                    row[23],
		ProcessDate:                    row[24],
		StartDate:                      row[25],
		EndDate:                        row[26],
		LastUpdateDate:                 row[27],
		EntryDate:                      row[28],
	}, nil
}
