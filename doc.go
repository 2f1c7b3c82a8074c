/*
Package harness hosts JavaScript conformance and benchmark scripts on goja.

A Harness is created with the Host capabilities the embedding program
provides and booted once with Boot before any script runs. Each script then
runs in its own Session: a fresh runtime with the hosted globals installed:

	print(...)             writes its arguments space-joined to stdout
	assert(v, msg)         fails unless v === true
	assertTrue(v)          fails unless v === true
	assertFalse(v)         fails unless v === false
	assertNull(v)          fails unless v === null
	assertNotNull(v)       fails if v === null
	assertEquals(a, b)     fails unless a === b
	assertUnreachable()    always fails
	exit(code)             terminates the script with the given status (0-255)
	readline()             reads a line from the stdin provider, null if none
	load(path)             runs another script in the same session
	readFile(path)         returns the contents of a file ("-" is stdin)
	setTimeout, setInterval, setImmediate and their clear counterparts

Timer callbacks run on the session's event loop after the script body. None
of them runs once the script has been terminated, and an exception escaping
a callback ends the session with that exception.

A failed assertion terminates the script immediately. The failure is not a
JavaScript exception and cannot be caught by the script; it surfaces as an
*AssertionError from Run, which ExitCode maps to status 1.
*/
package harness
