package domain

import "errors"

var ErrOpaqueToken = errors.New("token is not a parsable JWT")
var ErrNoRoute = errors.New("no route matches path")
