package pretend

import (
	"composure/src/kern"
)

// The core never issues thread or IPC calls; collaborators do.  The model
// validates the capability types involved and keeps notification state,
// and leaves the message-passing calls unimplemented.

func (k *Kernel) TCBConfigure(tcb kern.Cptr, faultEP kern.Cptr, cspaceRoot kern.Cptr, cspaceData kern.CapData, vspaceRoot kern.Cptr, ipcBuffer uint64, ipcBufferFrame kern.Cptr) error {
	k.count(kern.CallTCBConfigure)
	rec, ok := k.lookup(tcb)
	if !ok || rec.obj.typ != kern.TCBObject {
		return kern.Fail(kern.CallTCBConfigure, kern.CodeInvalidCapability)
	}
	return nil
}

func (k *Kernel) TCBSetPriority(tcb kern.Cptr, authority kern.Cptr, priority uint8) error {
	k.count(kern.CallTCBSetPriority)
	rec, ok := k.lookup(tcb)
	if !ok || rec.obj.typ != kern.TCBObject {
		return kern.Fail(kern.CallTCBSetPriority, kern.CodeInvalidCapability)
	}
	return nil
}

func (k *Kernel) TCBWriteRegisters(tcb kern.Cptr, pc uint64, sp uint64) error {
	k.count(kern.CallTCBWriteRegisters)
	rec, ok := k.lookup(tcb)
	if !ok || rec.obj.typ != kern.TCBObject {
		return kern.Fail(kern.CallTCBWriteRegisters, kern.CodeInvalidCapability)
	}
	return nil
}

func (k *Kernel) TCBResume(tcb kern.Cptr) error {
	k.count(kern.CallTCBResume)
	rec, ok := k.lookup(tcb)
	if !ok || rec.obj.typ != kern.TCBObject {
		return kern.Fail(kern.CallTCBResume, kern.CodeInvalidCapability)
	}
	return nil
}

func (k *Kernel) Yield() {
	k.count(kern.CallYield)
}

func (k *Kernel) Signal(notification kern.Cptr) error {
	k.count(kern.CallSignal)
	rec, ok := k.lookup(notification)
	if !ok || rec.obj.typ != kern.NotificationObject {
		return kern.Fail(kern.CallSignal, kern.CodeInvalidCapability)
	}
	rec.obj.notifyWord |= uint64(rec.badge)
	return nil
}

func (k *Kernel) Wait(notification kern.Cptr) (kern.Badge, error) {
	k.count(kern.CallWait)
	rec, ok := k.lookup(notification)
	if !ok || rec.obj.typ != kern.NotificationObject {
		return 0, kern.Fail(kern.CallWait, kern.CodeInvalidCapability)
	}
	b := kern.Badge(rec.obj.notifyWord)
	rec.obj.notifyWord = 0
	return b, nil
}

func (k *Kernel) Poll(notification kern.Cptr) (kern.Badge, bool, error) {
	k.count(kern.CallPoll)
	rec, ok := k.lookup(notification)
	if !ok || rec.obj.typ != kern.NotificationObject {
		return 0, false, kern.Fail(kern.CallPoll, kern.CodeInvalidCapability)
	}
	b := kern.Badge(rec.obj.notifyWord)
	rec.obj.notifyWord = 0
	return b, b != 0, nil
}

func (k *Kernel) Send(endpoint kern.Cptr, msg []uint64) error {
	k.count(kern.CallSend)
	return kern.Fail(kern.CallSend, kern.CodeIllegalOperation)
}

func (k *Kernel) Call(endpoint kern.Cptr, msg []uint64) ([]uint64, error) {
	k.count(kern.CallCall)
	return nil, kern.Fail(kern.CallCall, kern.CodeIllegalOperation)
}

func (k *Kernel) Recv(endpoint kern.Cptr) ([]uint64, kern.Badge, error) {
	k.count(kern.CallRecv)
	return nil, 0, kern.Fail(kern.CallRecv, kern.CodeIllegalOperation)
}

func (k *Kernel) ReplyRecv(endpoint kern.Cptr, reply []uint64) ([]uint64, kern.Badge, error) {
	k.count(kern.CallReplyRecv)
	return nil, 0, kern.Fail(kern.CallReplyRecv, kern.CodeIllegalOperation)
}
