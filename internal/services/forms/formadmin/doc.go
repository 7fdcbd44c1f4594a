// Package formadmin implements the administrative operations on form
// instances: toggling publication, re-saving against the newest structure
// version, and the create, read and settings operations around them.
package formadmin
