package backend

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// The backend is not consistent about wrapping: lists come either bare or
// under a named field, ids come as "id" or "_id". The helpers below accept
// both without a struct per variant.

// unwrapList returns the raw JSON array in body. A bare array is returned as
// is; for an object the first of keys holding an array is used.
func unwrapList(body []byte, keys ...string) ([]byte, error) {
	d := jx.DecodeBytes(body)
	switch d.Next() {
	case jx.Array:
		return body, nil
	case jx.Object:
	default:
		return nil, errors.New("expected array or object")
	}

	var found jx.Raw
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if found != nil || !contains(keys, string(key)) || d.Next() != jx.Array {
			return d.Skip()
		}
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		found = append(jx.Raw(nil), raw...)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "scan envelope")
	}
	if found == nil {
		return nil, errors.Errorf("no list under %v", keys)
	}
	return found, nil
}

// findString returns the first string value found under keys at the top
// level of body, descending once into the objects named by nested.
func findString(body []byte, keys, nested []string) (string, error) {
	var (
		direct string
		inner  jx.Raw
	)
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		k := string(key)
		switch {
		case direct == "" && contains(keys, k):
			switch d.Next() {
			case jx.String:
				s, err := d.Str()
				if err != nil {
					return err
				}
				direct = s
				return nil
			case jx.Number:
				n, err := d.Num()
				if err != nil {
					return err
				}
				direct = n.String()
				return nil
			}
		case inner == nil && contains(nested, k) && d.Next() == jx.Object:
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			inner = append(jx.Raw(nil), raw...)
			return nil
		}
		return d.Skip()
	})
	if err != nil {
		return "", errors.Wrap(err, "scan body")
	}
	if direct != "" || inner == nil {
		return direct, nil
	}
	return findString(inner, keys, nil)
}

// findObject returns the raw object stored under the first matching key.
func findObject(body []byte, keys ...string) (jx.Raw, error) {
	var found jx.Raw
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if found != nil || !contains(keys, string(key)) || d.Next() != jx.Object {
			return d.Skip()
		}
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		found = append(jx.Raw(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan body")
	}
	return found, nil
}

func contains(keys []string, k string) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}
