// Package throttle counts failed logins in Redis and refuses further
// attempts once a budget is spent.
//
// # Window semantics
//
// Fixed-window counters: one Lua script does INCR and PEXPIRE on the first
// hit, so a counter never outlives its window. Keys:
//   - <prefix>:lf:<email> - failures per login identifier
//   - <prefix>:lfi:<ip>   - failures per client IP
//
// A successful login clears the identifier counter only; the IP counter
// expires on its own.
package throttle
