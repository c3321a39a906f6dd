package graph

import "errors"

var (
	ErrUnknownNode    = errors.New("unknown node")
	ErrDuplicateNode  = errors.New("duplicate node id")
	ErrDuplicateEdge  = errors.New("duplicate edge id")
	ErrPortSide       = errors.New("port on wrong side")
	ErrPortRange      = errors.New("port index out of range")
	ErrPortOccupied   = errors.New("input port already connected")
	ErrCycle          = errors.New("edge would create a cycle")
	ErrParamsMismatch = errors.New("params do not match node type")
	ErrBadHandle      = errors.New("malformed port handle")
	ErrBadPosition    = errors.New("position is not finite")
	ErrEmptyID        = errors.New("empty id")
	ErrNodeKind       = errors.New("unsupported node kind")
)
