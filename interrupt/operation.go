package interrupt

import (
	"fmt"

	"github.com/heyvito/btrieve"
)

// Operation is the operation code of a command structure.
type Operation uint16

const (
	Open   Operation = 0
	Close  Operation = 1
	Insert Operation = 2
	Update Operation = 3
	Delete Operation = 4

	AcquireEqual          Operation = 5
	AcquireNext           Operation = 6
	AcquirePrevious       Operation = 7
	AcquireGreater        Operation = 8
	AcquireGreaterOrEqual Operation = 9
	AcquireLess           Operation = 10
	AcquireLessOrEqual    Operation = 11
	AcquireFirst          Operation = 12
	AcquireLast           Operation = 13

	Create                 Operation = 14
	Stat                   Operation = 15
	Extend                 Operation = 16
	SetDirectory           Operation = 17
	GetDirectory           Operation = 18
	BeginTransaction       Operation = 19
	EndTransaction         Operation = 20
	AbortTransaction       Operation = 21
	GetPosition            Operation = 22
	GetDirectChunkOrRecord Operation = 23
	StepNext               Operation = 24
	Stop                   Operation = 25
	Version                Operation = 26
	Unlock                 Operation = 27
	Reset                  Operation = 28
	SetOwner               Operation = 29
	ClearOwner             Operation = 30
	StepFirst              Operation = 33
	StepLast               Operation = 34
	StepPrevious           Operation = 35

	QueryEqual          Operation = 55
	QueryNext           Operation = 56
	QueryPrevious       Operation = 57
	QueryGreater        Operation = 58
	QueryGreaterOrEqual Operation = 59
	QueryLess           Operation = 60
	QueryLessOrEqual    Operation = 61
	QueryFirst          Operation = 62
	QueryLast           Operation = 63
)

// queryBias separates key-only Query operations from their Acquire
// counterparts.
const queryBias = QueryEqual - AcquireEqual

var operationNames = map[Operation]string{
	Open:                   "Open",
	Close:                  "Close",
	Insert:                 "Insert",
	Update:                 "Update",
	Delete:                 "Delete",
	AcquireEqual:           "AcquireEqual",
	AcquireNext:            "AcquireNext",
	AcquirePrevious:        "AcquirePrevious",
	AcquireGreater:         "AcquireGreater",
	AcquireGreaterOrEqual:  "AcquireGreaterOrEqual",
	AcquireLess:            "AcquireLess",
	AcquireLessOrEqual:     "AcquireLessOrEqual",
	AcquireFirst:           "AcquireFirst",
	AcquireLast:            "AcquireLast",
	Create:                 "Create",
	Stat:                   "Stat",
	Extend:                 "Extend",
	SetDirectory:           "SetDirectory",
	GetDirectory:           "GetDirectory",
	BeginTransaction:       "BeginTransaction",
	EndTransaction:         "EndTransaction",
	AbortTransaction:       "AbortTransaction",
	GetPosition:            "GetPosition",
	GetDirectChunkOrRecord: "GetDirectChunkOrRecord",
	StepNext:               "StepNext",
	Stop:                   "Stop",
	Version:                "Version",
	Unlock:                 "Unlock",
	Reset:                  "Reset",
	SetOwner:               "SetOwner",
	ClearOwner:             "ClearOwner",
	StepFirst:              "StepFirst",
	StepLast:               "StepLast",
	StepPrevious:           "StepPrevious",
	QueryEqual:             "QueryEqual",
	QueryNext:              "QueryNext",
	QueryPrevious:          "QueryPrevious",
	QueryGreater:           "QueryGreater",
	QueryGreaterOrEqual:    "QueryGreaterOrEqual",
	QueryLess:              "QueryLess",
	QueryLessOrEqual:       "QueryLessOrEqual",
	QueryFirst:             "QueryFirst",
	QueryLast:              "QueryLast",
}

func (o Operation) String() string {
	if n, ok := operationNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Operation(%d)", uint16(o))
}

var seekOperators = map[Operation]btrieve.Operator{
	AcquireEqual:          btrieve.Equal,
	AcquireNext:           btrieve.Next,
	AcquirePrevious:       btrieve.Previous,
	AcquireGreater:        btrieve.GreaterThan,
	AcquireGreaterOrEqual: btrieve.GreaterOrEqual,
	AcquireLess:           btrieve.LessThan,
	AcquireLessOrEqual:    btrieve.LessOrEqual,
	AcquireFirst:          btrieve.First,
	AcquireLast:           btrieve.Last,
}

// seekOperator returns the key operator of an Acquire or Query operation, and
// whether the operation yields the record data along with its key.
func (o Operation) seekOperator() (op btrieve.Operator, acquire bool, ok bool) {
	if op, ok = seekOperators[o]; ok {
		return op, true, true
	}
	if o >= queryBias {
		op, ok = seekOperators[o-queryBias]
	}
	return op, false, ok
}

// usesProbe reports whether the operator reads a key value from the key
// buffer.
func usesProbe(op btrieve.Operator) bool {
	switch op {
	case btrieve.First, btrieve.Last, btrieve.Next, btrieve.Previous:
		return false
	}
	return true
}
