package wire

import "github.com/davecgh/go-spew/spew"

// Dump defers a full spew dump of m until the result is formatted, so debug
// log statements cost nothing when the level is disabled.
func Dump(m Message) interface{} { return dump{m} }

type dump struct{ m Message }

func (d dump) String() string { return spew.Sdump(d.m) }
