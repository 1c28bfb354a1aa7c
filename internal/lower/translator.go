package lower

import (
	"context"

	"dexlower/internal/dex"
	"dexlower/internal/names"
	"dexlower/internal/rl"
)

// ZeroBodies is the stand-in body translator: constructors chain to the
// super class's default constructor and every method returns the zero value
// of its return type. Prologue calls are emitted first.
type ZeroBodies struct{}

func (ZeroBodies) Translate(_ context.Context, req TranslateRequest) (*rl.MethodBody, error) {
	m := req.Method
	body := rl.NewBody(m.Proto, m.IsStatic())
	for _, ref := range req.Prologue {
		body.Add(rl.InvokeStatic, ref)
	}
	if m.Name == names.Init && req.Class != nil && !req.Class.Super.IsZero() {
		super := dex.MethodRef{Owner: req.Class.Super, Name: names.Init, Proto: proto(dex.Void)}
		body.Add(rl.InvokeDirect, super, body.This())
	}
	ret := m.Proto.ReturnType()
	if ret.IsVoid() {
		body.Add(rl.ReturnVoid, nil)
		return body, nil
	}
	returnValue(body, ret, zeroValue(body, ret))
	return body, nil
}
