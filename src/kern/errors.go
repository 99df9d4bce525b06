package kern

import (
	"errors"
	"fmt"
)

// APICall names a kernel operation so errors can say which invocation the
// kernel rejected.
type APICall int

const (
	CallUntypedRetype APICall = iota
	CallCNodeCopy
	CallCNodeMint
	CallCNodeMove
	CallCNodeDelete
	CallCNodeRevoke
	CallCNodeMutate
	CallASIDControlMakePool
	CallASIDPoolAssign
	CallPageMap
	CallPageUnmap
	CallPageTableMap
	CallPageDirectoryMap
	CallPageUpperDirectoryMap
	CallTCBConfigure
	CallTCBSetPriority
	CallTCBWriteRegisters
	CallTCBResume
	CallYield
	CallSignal
	CallWait
	CallPoll
	CallSend
	CallCall
	CallRecv
	CallReplyRecv
)

var apiCallNames = map[APICall]string{
	CallUntypedRetype:         "Untyped_Retype",
	CallCNodeCopy:             "CNode_Copy",
	CallCNodeMint:             "CNode_Mint",
	CallCNodeMove:             "CNode_Move",
	CallCNodeDelete:           "CNode_Delete",
	CallCNodeRevoke:           "CNode_Revoke",
	CallCNodeMutate:           "CNode_Mutate",
	CallASIDControlMakePool:   "ASIDControl_MakePool",
	CallASIDPoolAssign:        "ASIDPool_Assign",
	CallPageMap:               "Page_Map",
	CallPageUnmap:             "Page_Unmap",
	CallPageTableMap:          "PageTable_Map",
	CallPageDirectoryMap:      "PageDirectory_Map",
	CallPageUpperDirectoryMap: "PageUpperDirectory_Map",
	CallTCBConfigure:          "TCB_Configure",
	CallTCBSetPriority:        "TCB_SetPriority",
	CallTCBWriteRegisters:     "TCB_WriteRegisters",
	CallTCBResume:             "TCB_Resume",
	CallYield:                 "Yield",
	CallSignal:                "Signal",
	CallWait:                  "Wait",
	CallPoll:                  "Poll",
	CallSend:                  "Send",
	CallCall:                  "Call",
	CallRecv:                  "Recv",
	CallReplyRecv:             "ReplyRecv",
}

func (c APICall) String() string {
	if s, ok := apiCallNames[c]; ok {
		return s
	}
	return "UnknownCall"
}

// KernelCode is the raw error class a syscall can come back with.
type KernelCode int

const (
	CodeInvalidArgument KernelCode = iota + 1
	CodeInvalidCapability
	CodeIllegalOperation
	CodeRangeError
	CodeAlignmentError
	CodeFailedLookup
	CodeDeleteFirst
	CodeRevokeFirst
	CodeNotEnoughMemory
)

var kernelCodeNames = map[KernelCode]string{
	CodeInvalidArgument:   "InvalidArgument",
	CodeInvalidCapability: "InvalidCapability",
	CodeIllegalOperation:  "IllegalOperation",
	CodeRangeError:        "RangeError",
	CodeAlignmentError:    "AlignmentError",
	CodeFailedLookup:      "FailedLookup",
	CodeDeleteFirst:       "DeleteFirst",
	CodeRevokeFirst:       "RevokeFirst",
	CodeNotEnoughMemory:   "NotEnoughMemory",
}

func (k KernelCode) String() string {
	if s, ok := kernelCodeNames[k]; ok {
		return s
	}
	return "UnknownCode"
}

// SyscallError is a kernel rejection, tagged with the call that was
// rejected.
type SyscallError struct {
	Call APICall
	Code KernelCode
}

func (e *SyscallError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Call, e.Code)
}

// Fail builds the error for a rejected call.
func Fail(call APICall, code KernelCode) error {
	return &SyscallError{Call: call, Code: code}
}

// IsCode reports whether err is (or wraps) a syscall error with the
// given code.
func IsCode(err error, code KernelCode) bool {
	var se *SyscallError
	return errors.As(err, &se) && se.Code == code
}
