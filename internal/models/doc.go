// package models defines the data model for the liked-songs migration service
package models
