package builtin

import (
	addr "github.com/filecoin-project/go-address"
	address "github.com/filecoin-project/go-address"
	abi "github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/redmont/Advanced-liquid-staking-sub001/actors/runtime"
)

type ValidateGrantedParams struct {
	Caller address.Address
	Method abi.MethodNum
}

// Validates that if caller is granted on the method
func ValidateCallerGranted(rt runtime.Runtime, caller addr.Address, method abi.MethodNum) {
	params := &ValidateGrantedParams{
		Caller: caller,
		Method: method,
	}
	code := rt.Send(GovernActorAddr, MethodsGovern.ValidateGranted, params, abi.NewTokenAmount(0), &Discard{})
	errMsg := "failed to validate caller granted"
	if code == exitcode.ErrForbidden {
		errMsg = "method not granted"
	}
	RequireSuccess(rt, code, errMsg)
}
