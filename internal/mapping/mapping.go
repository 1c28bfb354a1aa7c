// Package mapping collects source to target name records for the debug map
// writer. Lowering only appends; readers use a decoded MapFile.
package mapping

import (
	"fmt"
	"io"
	"sort"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
)

// Recorder receives one record per emitted class.
type Recorder interface {
	RecordType(name, scope, dexName string, id, scopeID int) TypeRecorder
}

// TypeRecorder receives the member records of one class.
type TypeRecorder interface {
	RecordField(name, typ, dexName, dexType string)
	RecordMethod(name, signature, dexName, dexSignature string, id int)
}

// FieldEntry maps a source field to its target field.
type FieldEntry struct {
	Name    string
	Type    string
	DexName string
	DexType string
}

// MethodEntry maps a source method to its target method.
type MethodEntry struct {
	Name         string
	Signature    string
	DexName      string
	DexSignature string
	ID           int
}

// TypeEntry maps a source type (or synthesized companion) to a target class.
type TypeEntry struct {
	Name    string
	Scope   string
	DexName string
	ID      int
	ScopeID int
	Fields  []FieldEntry
	Methods []MethodEntry
}

func (e *TypeEntry) RecordField(name, typ, dexName, dexType string) {
	e.Fields = append(e.Fields, FieldEntry{Name: name, Type: typ, DexName: dexName, DexType: dexType})
}

func (e *TypeEntry) RecordMethod(name, signature, dexName, dexSignature string, id int) {
	e.Methods = append(e.Methods, MethodEntry{
		Name: name, Signature: signature, DexName: dexName, DexSignature: dexSignature, ID: id,
	})
}

// MapFile is an in-memory Recorder.
type MapFile struct {
	Types []*TypeEntry
}

// RecordType appends a type entry and returns it for member records.
func (m *MapFile) RecordType(name, scope, dexName string, id, scopeID int) TypeRecorder {
	e := &TypeEntry{Name: name, Scope: scope, DexName: dexName, ID: id, ScopeID: scopeID}
	m.Types = append(m.Types, e)
	return e
}

// ByDexName finds the entry recorded for a target class.
func (m *MapFile) ByDexName(dexName string) *TypeEntry {
	for _, e := range m.Types {
		if e.DexName == dexName {
			return e
		}
	}
	return nil
}

// ByName finds the entry recorded for a source type name.
func (m *MapFile) ByName(name string) *TypeEntry {
	for _, e := range m.Types {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Sort orders entries by id for a stable output.
func (m *MapFile) Sort() {
	sort.SliceStable(m.Types, func(i, j int) bool { return m.Types[i].ID < m.Types[j].ID })
}

const mapSchema uint16 = 1

type wireMethod struct {
	Name, Signature, DexName, DexSignature string
	ID                                     uint32
}

type wireType struct {
	Name, Scope, DexName string
	ID, ScopeID          uint32
	Fields               []FieldEntry
	Methods              []wireMethod
}

type wireFile struct {
	Schema uint16
	Types  []wireType
}

func toWire(id int, what string) (uint32, error) {
	v, err := safecast.Conv[uint32](id)
	if err != nil {
		return 0, fmt.Errorf("map id of %s: %w", what, err)
	}
	return v, nil
}

// Encode writes the map file as msgpack.
func (m *MapFile) Encode(w io.Writer) error {
	wf := wireFile{Schema: mapSchema}
	for _, e := range m.Types {
		wt := wireType{Name: e.Name, Scope: e.Scope, DexName: e.DexName, Fields: e.Fields}
		var err error
		if wt.ID, err = toWire(e.ID, e.Name); err != nil {
			return err
		}
		if wt.ScopeID, err = toWire(e.ScopeID, e.Name); err != nil {
			return err
		}
		for _, me := range e.Methods {
			id, err := toWire(me.ID, e.Name+"::"+me.Name)
			if err != nil {
				return err
			}
			wt.Methods = append(wt.Methods, wireMethod{
				Name: me.Name, Signature: me.Signature, DexName: me.DexName, DexSignature: me.DexSignature, ID: id,
			})
		}
		wf.Types = append(wf.Types, wt)
	}
	return msgpack.NewEncoder(w).Encode(&wf)
}

// Decode reads a map file written by Encode.
func Decode(r io.Reader) (*MapFile, error) {
	var wf wireFile
	if err := msgpack.NewDecoder(r).Decode(&wf); err != nil {
		return nil, fmt.Errorf("decode map file: %w", err)
	}
	if wf.Schema != mapSchema {
		return nil, fmt.Errorf("map file schema %d, want %d", wf.Schema, mapSchema)
	}
	m := &MapFile{}
	for _, wt := range wf.Types {
		e := &TypeEntry{
			Name: wt.Name, Scope: wt.Scope, DexName: wt.DexName,
			ID: int(wt.ID), ScopeID: int(wt.ScopeID), Fields: wt.Fields,
		}
		for _, wm := range wt.Methods {
			e.Methods = append(e.Methods, MethodEntry{
				Name: wm.Name, Signature: wm.Signature, DexName: wm.DexName, DexSignature: wm.DexSignature, ID: int(wm.ID),
			})
		}
		m.Types = append(m.Types, e)
	}
	return m, nil
}
