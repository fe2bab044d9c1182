package main

// jumpTo transfers control to entry with the stack pointer set to sp
// and never returns, implemented per-GOARCH in
// trampoline_{amd64,arm64,riscv64}.s. This is the direct Go-asm
// analogue of original_source/src/arch/*/trampoline.S's final jump:
// Go offers no language-level way to replace a goroutine's stack and
// jump to an arbitrary address, so the transfer has to drop to
// assembly. The caller must have already called runtime.LockOSThread,
// since this abandons the calling goroutine's Go stack and the
// scheduler must never try to preempt or move it.
func jumpTo(entry, sp uintptr)
