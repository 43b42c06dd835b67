package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator delimits cache key segments.
const KeySeparator = "::"

// maxKeyLength bounds serialized keys. Beyond it the parameter segments
// collapse into an xxhash digest; the prefix, namespace, and operation
// segments stay intact so prefix-based invalidation keeps working.
const maxKeyLength = 256

// KeySerializer derives a deterministic cache key from a namespace, an
// operation name, and the operation's parameters. Structurally equal
// parameters must produce identical keys; that property is what makes
// the caching decorator transparent.
type KeySerializer interface {
	SerializeKey(namespace, operation string, args ...any) string
	// NamespacePrefix returns the key prefix shared by every key the
	// serializer emits for a namespace, used for invalidation.
	NamespacePrefix(namespace string) string
}

type keySerializer struct {
	prefix string
	tags   []string
}

// NewKeySerializer builds the default serializer. The prefix and tags
// identify this cache's namespace; tags are sorted so equal tag sets
// always produce the same keys.
func NewKeySerializer(prefix string, tags ...string) KeySerializer {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return &keySerializer{prefix: prefix, tags: sorted}
}

func (s *keySerializer) NamespacePrefix(namespace string) string {
	segments := make([]string, 0, len(s.tags)+2)
	if s.prefix != "" {
		segments = append(segments, s.prefix)
	}
	segments = append(segments, s.tags...)
	segments = append(segments, namespace)
	return strings.Join(segments, KeySeparator) + KeySeparator
}

func (s *keySerializer) SerializeKey(namespace, operation string, args ...any) string {
	head := s.NamespacePrefix(namespace) + operation

	if len(args) == 0 {
		return head
	}

	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, serializeValue(arg))
	}
	params := strings.Join(parts, KeySeparator)

	key := head + KeySeparator + params
	if len(key) <= maxKeyLength {
		return key
	}
	return head + KeySeparator + "h:" + strconv.FormatUint(xxhash.Sum64String(params), 16)
}

// serializeValue renders one argument deterministically. Maps are
// emitted with sorted keys, times in RFC3339Nano, pointers dereferenced,
// and anything else falls back to JSON so an unserializable value still
// yields a stable key rather than a panic.
func serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	switch tv := v.(type) {
	case string:
		return tv
	case time.Time:
		return tv.UTC().Format(time.RFC3339Nano)
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprintf("%v", tv)
	}

	// Self-describing values render themselves. Filter conditions carry
	// their operator and operands only through String(); reflecting over
	// their fields would collapse distinct conditions into one key.
	if s, ok := v.(fmt.Stringer); ok {
		if rv := reflect.ValueOf(v); rv.Kind() != reflect.Ptr || !rv.IsNil() {
			return s.String()
		}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return serializeValue(rv.Elem().Interface())

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "[]"
		}
		parts := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parts[i] = serializeValue(rv.Index(i).Interface())
		}
		return "[" + strings.Join(parts, ",") + "]"

	case reflect.Map:
		if rv.IsNil() {
			return "{}"
		}
		pairs := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			pairs = append(pairs, serializeValue(iter.Key().Interface())+"="+serializeValue(iter.Value().Interface()))
		}
		sort.Strings(pairs)
		return "{" + strings.Join(pairs, ",") + "}"

	case reflect.Struct:
		rt := rv.Type()
		parts := make([]string, 0, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			parts = append(parts, field.Name+":"+serializeValue(rv.Field(i).Interface()))
		}
		return rt.Name() + "{" + strings.Join(parts, ",") + "}"

	case reflect.Func, reflect.Chan:
		return fmt.Sprintf("%s:%p", rv.Kind(), v)

	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "opaque:" + reflect.TypeOf(v).String()
		}
		return string(raw)
	}
}
