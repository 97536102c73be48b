package mock

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/runtime"
)

type exports interface {
	Exports() []interface{}
}

// Checks that the exported methods of an actor have the expected shape:
// a runtime and a CBOR-unmarshalable parameter in, a CBOR-marshalable result out.
func CheckActorExports(t *testing.T, act exports) {
	for i, m := range act.Exports() {
		if i == 0 { // Send is implicit
			assert.Nil(t, m, "send slot must be nil")
			continue
		}
		if m == nil {
			continue
		}

		t.Run(fmt.Sprintf("method%d", i), func(t *testing.T) {
			mt := reflect.TypeOf(m)
			require.Equal(t, reflect.Func, mt.Kind())
			require.Equal(t, 2, mt.NumIn())
			require.Equal(t, 1, mt.NumOut())

			require.Equal(t, reflect.TypeOf((*runtime.Runtime)(nil)).Elem(), mt.In(0))

			paramT := mt.In(1)
			require.Equal(t, reflect.Ptr, paramT.Kind(), "parameter type %v is not a pointer", paramT)
			unmarshaler := reflect.TypeOf((*cbor.Unmarshaler)(nil)).Elem()
			require.True(t, paramT.Implements(unmarshaler), "parameter type %v is not a CBOR unmarshaler", paramT)

			marshaler := reflect.TypeOf((*cbor.Marshaler)(nil)).Elem()
			require.True(t, mt.Out(0).Implements(marshaler), "return type %v is not a CBOR marshaler", mt.Out(0))
		})
	}
}
