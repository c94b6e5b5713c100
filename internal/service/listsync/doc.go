// Package listsync reconciles CRM group membership with a remote mailing
// list.
//
// A run for one list is split into named steps that can be retried on their
// own: both sides are collected into staging tables, list rows are matched
// to CRM contacts, rows that already agree are reduced away, and whatever
// remains is reconciled in one direction. Push makes the list look like the
// CRM membership group; pull brings list changes back into the CRM.
//
// The service layer depends only on the interfaces in repository.go. It
// never imports net/http or database/sql directly.
package listsync
