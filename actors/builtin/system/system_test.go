package system_test

import (
	"testing"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/builtin/system"
	"github.com/redmont/Advanced-liquid-staking-sub001/support/mock"
)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, system.Actor{})
}
