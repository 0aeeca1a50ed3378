package runtime

// callEntry invokes the compiled or trampoline native function at addr
// with zero arguments and returns whatever it left in the return
// register, per spec §4.3's `Environment::run` calling the entry
// block's function pointer once. Implemented in call_amd64.s: a
// minimal indirect CALL, since Go cannot call a raw uintptr as a
// function value without an assembly bridge.
func callEntry(addr uintptr) uint64
