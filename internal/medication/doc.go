// Package medication defines the records dosewatch keeps: the Medicine list
// and the adherence LogEntry, together with the validated constructor and
// the error taxonomy shared by every layer above it.
//
// Medicine IDs are positional. They always form the contiguous sequence 1..N
// in list order and are reassigned by Renumber after a deletion. Anything that
// must survive a deletion (the adherence log in particular) refers to a
// medicine by name, never by ID.
package medication
