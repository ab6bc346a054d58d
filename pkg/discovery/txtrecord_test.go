package discovery

import (
	"errors"
	"reflect"
	"testing"
)

func TestEncodeDecodeEndpointTXT(t *testing.T) {
	info := &EndpointInfo{
		EID:            10,
		NetworkID:      1,
		Name:           "bmc0",
		SupportedTypes: []uint8{0x00, 0x02},
		Version:        "1.2",
		Commands:       []uint8{0x0A, 0x0D, 0x11},
	}

	txt := EncodeEndpointTXT(info)
	if txt[TXTKeyEID] != "10" || txt[TXTKeyNetworkID] != "1" {
		t.Errorf("required keys: %v", txt)
	}
	if txt[TXTKeyName] != "bmc0" {
		t.Errorf("name key: %q", txt[TXTKeyName])
	}
	if txt[TXTKeyTypes] != "0,2" {
		t.Errorf("types key: %q", txt[TXTKeyTypes])
	}
	if txt[TXTKeyVersion] != "f1f2ff00" {
		t.Errorf("version key: %q", txt[TXTKeyVersion])
	}
	if txt[TXTKeyCommands] != "10,13,17" {
		t.Errorf("commands key: %q", txt[TXTKeyCommands])
	}

	got, err := DecodeEndpointTXT(txt)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.EID != 10 || got.NetworkID != 1 || got.Name != "bmc0" {
		t.Errorf("decoded %+v", got)
	}
	if !reflect.DeepEqual(got.SupportedTypes, []uint8{0x00, 0x02}) {
		t.Errorf("types: %v", got.SupportedTypes)
	}
	if got.Version != "1.2" {
		t.Errorf("version: %q", got.Version)
	}
	if !reflect.DeepEqual(got.Commands, []uint8{0x0A, 0x0D, 0x11}) {
		t.Errorf("commands: %v", got.Commands)
	}
}

func TestEncodeOmitsEmptyOptionals(t *testing.T) {
	txt := EncodeEndpointTXT(&EndpointInfo{EID: 1})
	if _, ok := txt[TXTKeyName]; ok {
		t.Error("empty name must be omitted")
	}
	if _, ok := txt[TXTKeyTypes]; ok {
		t.Error("empty type list must be omitted")
	}
	if _, ok := txt[TXTKeyVersion]; ok {
		t.Error("empty version must be omitted")
	}
	if _, ok := txt[TXTKeyCommands]; ok {
		t.Error("empty command list must be omitted")
	}
}

func TestEncodeOmitsUnparseableVersion(t *testing.T) {
	txt := EncodeEndpointTXT(&EndpointInfo{EID: 1, Version: "banana"})
	if _, ok := txt[TXTKeyVersion]; ok {
		t.Error("unparseable version must be omitted")
	}
}

func TestDecodeEndpointTXTErrors(t *testing.T) {
	tests := []struct {
		name string
		txt  TXTRecordMap
		want error
	}{
		{"missing eid", TXTRecordMap{TXTKeyNetworkID: "1"}, ErrMissingRequired},
		{"missing net", TXTRecordMap{TXTKeyEID: "10"}, ErrMissingRequired},
		{"eid not a number", TXTRecordMap{TXTKeyEID: "x", TXTKeyNetworkID: "1"}, ErrInvalidEID},
		{"eid is broadcast", TXTRecordMap{TXTKeyEID: "255", TXTKeyNetworkID: "1"}, ErrInvalidEID},
		{"net not a number", TXTRecordMap{TXTKeyEID: "10", TXTKeyNetworkID: "nope"}, ErrInvalidNetworkID},
		{"version not hex", TXTRecordMap{TXTKeyEID: "10", TXTKeyNetworkID: "1", TXTKeyVersion: "zzzz"}, ErrInvalidVersion},
		{"version bad bcd", TXTRecordMap{TXTKeyEID: "10", TXTKeyNetworkID: "1", TXTKeyVersion: "f1faff00"}, ErrInvalidVersion},
		{"version wrong major", TXTRecordMap{TXTKeyEID: "10", TXTKeyNetworkID: "1", TXTKeyVersion: "f2f0ff00"}, ErrIncompatibleVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEndpointTXT(tt.txt)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeRejectsBadTypeList(t *testing.T) {
	txt := TXTRecordMap{TXTKeyEID: "10", TXTKeyNetworkID: "1", TXTKeyTypes: "2,zz"}
	if _, err := DecodeEndpointTXT(txt); err == nil {
		t.Error("expected error for malformed type list")
	}
}

func TestTXTRecordStringConversion(t *testing.T) {
	records := []string{"eid=10", "net=1", "name=bmc0", "malformed", "=novalue"}
	txt := StringsToTXTRecords(records)

	want := TXTRecordMap{"eid": "10", "net": "1", "name": "bmc0"}
	if !reflect.DeepEqual(txt, want) {
		t.Errorf("got %v, want %v", txt, want)
	}

	back := TXTRecordsToStrings(txt)
	if len(back) != 3 {
		t.Errorf("got %d strings, want 3", len(back))
	}
	round := StringsToTXTRecords(back)
	if !reflect.DeepEqual(round, want) {
		t.Errorf("round trip: %v", round)
	}
}

func TestEndpointKey(t *testing.T) {
	a := EndpointInfo{EID: 10, NetworkID: 1}
	b := EndpointInfo{EID: 10, NetworkID: 2}
	if a.Key() == b.Key() {
		t.Error("EIDs on different networks must not collide")
	}
	if a.Key() != (EndpointKey{NetworkID: 1, EID: 10}) {
		t.Errorf("key: %+v", a.Key())
	}
}
