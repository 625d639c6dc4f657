package smartfs

import (
	"bytes"
	"encoding/binary"
	"reflect"
)

// binSize returns the encoded size, in bytes, of the exported fields of v
// (a pointer to a struct of fixed-size fields), in the order they're
// declared. Grounded on the teacher's Superblock.binarySize, generalized
// so the superblock, inode, dedup, directory-entry and physical-index
// records can all share it.
func binSize(v interface{}) int {
	rv := reflect.ValueOf(v).Elem()
	n := rv.NumField()
	sz := 0
	for i := 0; i < n; i++ {
		name := rv.Type().Field(i).Name
		if name[0] < 'A' || name[0] > 'Z' {
			continue // unexported fields carry no on-disk representation
		}
		sz += binary.Size(rv.Field(i).Interface())
	}
	return sz
}

// binMarshal encodes the exported fields of v, in field order, using byte
// order bo. Grounded on the field-by-field binary.Read loop in the
// teacher's Superblock.UnmarshalBinary and Inode.GetInodeRef.
func binMarshal(v interface{}, bo binary.ByteOrder) ([]byte, error) {
	rv := reflect.ValueOf(v).Elem()
	n := rv.NumField()
	buf := &bytes.Buffer{}
	for i := 0; i < n; i++ {
		name := rv.Type().Field(i).Name
		if name[0] < 'A' || name[0] > 'Z' {
			continue
		}
		if err := binary.Write(buf, bo, rv.Field(i).Interface()); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// binUnmarshal decodes data into the exported fields of v, in field order,
// using byte order bo.
func binUnmarshal(data []byte, v interface{}, bo binary.ByteOrder) error {
	rv := reflect.ValueOf(v).Elem()
	n := rv.NumField()
	r := bytes.NewReader(data)
	for i := 0; i < n; i++ {
		name := rv.Type().Field(i).Name
		if name[0] < 'A' || name[0] > 'Z' {
			continue
		}
		if err := binary.Read(r, bo, rv.Field(i).Addr().Interface()); err != nil {
			return err
		}
	}
	return nil
}
