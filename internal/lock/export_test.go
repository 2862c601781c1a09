package lock

// Test-only exports for the external lock_test package.
const RedisLockPrefix = redisLockPrefix

func MemoryLockerLocks(l *MemoryLocker) map[string]*memoryEntry { return l.locks }
