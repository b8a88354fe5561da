package types

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeBundlePlainScalar(t *testing.T) {
	ts, ok := Lookup(KindDouble, MetaPlain)
	if !ok {
		t.Fatal("Lookup failed")
	}
	want := PlainBundle{Val: NewDouble(3.25)}
	payload, err := EncodeBundle(ts, want)
	if err != nil {
		t.Fatalf("EncodeBundle() error = %v", err)
	}
	got, err := DecodeBundle(ts, payload, 1)
	if err != nil {
		t.Fatalf("DecodeBundle() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestEncodeDecodeBundleAlarmArray(t *testing.T) {
	ts, ok := Lookup(KindInt, MetaAlarm)
	if !ok {
		t.Fatal("Lookup failed")
	}
	want := AlarmBundle{
		Val:      Value{Kind: KindInt, Count: 3, Ints: []int32{1, 2, 3}},
		Status:   HighAlarm,
		Severity: SeverityMajor,
	}
	payload, err := EncodeBundle(ts, want)
	if err != nil {
		t.Fatalf("EncodeBundle() error = %v", err)
	}
	got, err := DecodeBundle(ts, payload, 3)
	if err != nil {
		t.Fatalf("DecodeBundle() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestEncodeDecodeBundleGraphicDouble(t *testing.T) {
	ts, ok := Lookup(KindDouble, MetaGraphic)
	if !ok {
		t.Fatal("Lookup failed")
	}
	want := GraphicBundle{
		Val: NewDouble(1.5), Status: HighAlarm, Severity: SeverityMinor,
		Units: "volts", Precision: 2,
		UpperDisp: 10, LowerDisp: -10, UpperWarn: 8, LowerWarn: -8, UpperAlrm: 9, LowerAlrm: -9,
	}
	payload, err := EncodeBundle(ts, want)
	if err != nil {
		t.Fatalf("EncodeBundle() error = %v", err)
	}
	got, err := DecodeBundle(ts, payload, 1)
	if err != nil {
		t.Fatalf("DecodeBundle() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestEncodeDecodeBundleControlFloat(t *testing.T) {
	ts, ok := Lookup(KindFloat, MetaControl)
	if !ok {
		t.Fatal("Lookup failed")
	}
	want := ControlBundle{
		Val: NewFloat(2.5), Status: NoAlarm, Severity: SeverityNoAlarm,
		Units: "mA", Precision: 1,
		UpperDisp: 100, LowerDisp: 0, UpperWarn: 90, LowerWarn: 10, UpperAlrm: 95, LowerAlrm: 5,
		UpperCtrl: 100, LowerCtrl: 0,
	}
	payload, err := EncodeBundle(ts, want)
	if err != nil {
		t.Fatalf("EncodeBundle() error = %v", err)
	}
	got, err := DecodeBundle(ts, payload, 1)
	if err != nil {
		t.Fatalf("DecodeBundle() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestEncodeDecodeBundleGraphicEnum(t *testing.T) {
	ts, ok := Lookup(KindShort, MetaGraphicEnum)
	if !ok {
		t.Fatal("Lookup failed")
	}
	labels := []string{"OFF", "ON", "FAULT", "UNKNOWN", "A", "B", "C", "D"}
	want := GraphicEnumBundle{
		Val: NewShort(2), Status: StateAlarm, Severity: SeverityMajor, Labels: labels,
	}
	payload, err := EncodeBundle(ts, want)
	if err != nil {
		t.Fatalf("EncodeBundle() error = %v", err)
	}
	got, err := DecodeBundle(ts, payload, 1)
	if err != nil {
		t.Fatalf("DecodeBundle() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestEncodeDecodeBundleStringArray(t *testing.T) {
	ts, ok := Lookup(KindString, MetaPlain)
	if !ok {
		t.Fatal("Lookup failed")
	}
	want := PlainBundle{Val: Value{Kind: KindString, Count: 2, Strs: []string{"hello", "world"}}}
	payload, err := EncodeBundle(ts, want)
	if err != nil {
		t.Fatalf("EncodeBundle() error = %v", err)
	}
	got, err := DecodeBundle(ts, payload, 2)
	if err != nil {
		t.Fatalf("DecodeBundle() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
