package config

import (
	"fmt"
)

type StorageKeyStruct struct{}

func NewStorageKeyStruct() *StorageKeyStruct {
	return &StorageKeyStruct{}
}

// SessionDeadlineKey returns the storage key holding the absolute end time
// (epoch seconds) of a student's exam session.
func (r *StorageKeyStruct) SessionDeadlineKey(studentID int, examID string) string {
	return fmt.Sprintf("student:%d:exam:%s:deadline", studentID, examID)
}

// SessionLedgerKey returns the storage key holding a student's in-progress
// answers and flagged-question snapshot.
func (r *StorageKeyStruct) SessionLedgerKey(studentID int, examID string) string {
	return fmt.Sprintf("student:%d:exam:%s:ledger", studentID, examID)
}

var StorageKey = NewStorageKeyStruct()
