package discovery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pldm-stack/pldm-go/pkg/version"
)

// currentVersion gates which advertised versions this library accepts.
var currentVersion, _ = version.Parse(version.Current)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeEndpointTXT creates TXT records for an endpoint advertisement.
func EncodeEndpointTXT(info *EndpointInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyEID] = strconv.FormatUint(uint64(info.EID), 10)
	txt[TXTKeyNetworkID] = strconv.FormatUint(uint64(info.NetworkID), 10)

	// Optional fields
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	if len(info.SupportedTypes) > 0 {
		txt[TXTKeyTypes] = encodeTypes(info.SupportedTypes)
	}
	if info.Version != "" {
		// Advertised in the same ver32 form the terminus reports on the
		// wire. An unparseable version is omitted from the record.
		if v, err := version.Parse(info.Version); err == nil {
			txt[TXTKeyVersion] = fmt.Sprintf("%08x", v.Ver32())
		}
	}
	if len(info.Commands) > 0 {
		txt[TXTKeyCommands] = encodeTypes(info.Commands)
	}

	return txt
}

// DecodeEndpointTXT parses TXT records from an endpoint advertisement.
func DecodeEndpointTXT(txt TXTRecordMap) (*EndpointInfo, error) {
	info := &EndpointInfo{}

	// Parse EID (required)
	eidStr, ok := txt[TXTKeyEID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyEID)
	}
	eid, err := strconv.ParseUint(eidStr, 10, 8)
	if err != nil || eid > MaxEID {
		return nil, ErrInvalidEID
	}
	info.EID = uint8(eid)

	// Parse network ID (required)
	netStr, ok := txt[TXTKeyNetworkID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyNetworkID)
	}
	netID, err := strconv.ParseUint(netStr, 10, 32)
	if err != nil {
		return nil, ErrInvalidNetworkID
	}
	info.NetworkID = uint32(netID)

	// Optional fields
	info.Name = txt[TXTKeyName]
	if typesStr, ok := txt[TXTKeyTypes]; ok {
		info.SupportedTypes, err = parseTypes(typesStr)
		if err != nil {
			return nil, err
		}
	}
	if verStr, ok := txt[TXTKeyVersion]; ok {
		raw, err := strconv.ParseUint(verStr, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, verStr)
		}
		v, err := version.FromVer32(uint32(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidVersion, err)
		}
		if !v.Compatible(currentVersion) {
			return nil, fmt.Errorf("%w: %s", ErrIncompatibleVersion, v)
		}
		info.Version = v.String()
	}
	if cmdsStr, ok := txt[TXTKeyCommands]; ok {
		info.Commands, err = parseTypes(cmdsStr)
		if err != nil {
			return nil, err
		}
	}

	return info, nil
}

// encodeTypes renders a PLDM type list as a comma-separated string.
func encodeTypes(types []uint8) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = strconv.FormatUint(uint64(t), 10)
	}
	return strings.Join(parts, ",")
}

// parseTypes parses a comma-separated PLDM type list.
func parseTypes(s string) ([]uint8, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	types := make([]uint8, 0, len(parts))
	for _, p := range parts {
		t, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid PLDM type %q", p)
		}
		types = append(types, uint8(t))
	}
	return types, nil
}

// TXTRecordsToStrings converts a TXT record map to "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	out := make([]string, 0, len(txt))
	for k, v := range txt {
		out = append(out, k+"="+v)
	}
	return out
}

// StringsToTXTRecords parses "key=value" strings into a TXT record map.
// Malformed entries are skipped.
func StringsToTXTRecords(records []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(records))
	for _, r := range records {
		k, v, found := strings.Cut(r, "=")
		if !found || k == "" {
			continue
		}
		txt[k] = v
	}
	return txt
}
