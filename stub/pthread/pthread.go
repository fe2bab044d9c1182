// Package pthread stubs the synchronization primitives loaded code
// commonly imports but that mean nothing in a single-threaded sandbox
// run: every lock/unlock/init/destroy succeeds immediately. Adapted
// from an ARM64-Android emulator's pthread mutex and TLS-key stubs,
// with pthread_key_create returning sequential keys out of a small
// counter instead of a fixed Android TLS slot table.
package pthread

import "github.com/elfload/elfload/stub"

func ok(cpu stub.CPU) { cpu.SetReturn(0) }

// Register installs mutex, rwlock, spinlock, and basic key-based TLS
// stubs.
func Register() {
	for _, name := range []string{
		"pthread_mutex_init", "pthread_mutex_destroy", "pthread_mutex_lock",
		"pthread_mutex_trylock", "pthread_mutex_unlock",
		"pthread_rwlock_init", "pthread_rwlock_destroy",
		"pthread_rwlock_rdlock", "pthread_rwlock_wrlock", "pthread_rwlock_unlock",
		"pthread_spin_init", "pthread_spin_destroy",
		"pthread_spin_lock", "pthread_spin_unlock",
		"pthread_cond_init", "pthread_cond_destroy",
		"pthread_cond_wait", "pthread_cond_signal", "pthread_cond_broadcast",
	} {
		stub.Register(stub.Def{Name: name, Category: "pthread", Hook: ok})
	}

	var nextKey uint64 = 1
	slots := make(map[uint64]uint64)
	stub.Register(stub.Def{Name: "pthread_key_create", Category: "pthread", Hook: func(cpu stub.CPU) {
		key := nextKey
		nextKey++
		slots[key] = 0
		// pthread_key_t is a 32-bit unsigned int; store the new key
		// through the caller's pointer.
		_ = cpu.WriteBytes(cpu.Arg(0), []byte{byte(key), byte(key >> 8), byte(key >> 16), byte(key >> 24)})
		cpu.SetReturn(0)
	}})
	stub.Register(stub.Def{Name: "pthread_setspecific", Category: "pthread", Hook: func(cpu stub.CPU) {
		slots[cpu.Arg(0)] = cpu.Arg(1)
		cpu.SetReturn(0)
	}})
	stub.Register(stub.Def{Name: "pthread_getspecific", Category: "pthread", Hook: func(cpu stub.CPU) {
		cpu.SetReturn(slots[cpu.Arg(0)])
	}})
	stub.Register(stub.Def{Name: "pthread_self", Category: "pthread", Hook: func(cpu stub.CPU) {
		cpu.SetReturn(1)
	}})
}
