package vmware

import (
	"errors"
	"os"
)

// lockState is the outcome of the runtime-file probe.
type lockState int

const (
	// lockAbsent means the runtime file does not exist; the signal is
	// skipped (recent Workstation versions may not create one).
	lockAbsent lockState = iota
	// lockHeld means the file is open by the VM execution process, so the
	// VM is running.
	lockHeld
	// lockFree means the file opened exclusively, so the VM is off.
	lockFree
	// lockInconclusive means the open failed for an unrelated reason.
	lockInconclusive
)

// probeLockFile attempts an exclusive read open of the VM's runtime-state
// file. A sharing violation means the VM execution process holds the file
// and the VM is running; a clean open means it is off.
func probeLockFile(path string) lockState {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return lockAbsent
	}

	f, err := openExclusive(path)
	if err != nil {
		if isSharingViolation(err) {
			return lockHeld
		}
		return lockInconclusive
	}
	f.Close()
	return lockFree
}
