// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notifier turns attendance into confirmation requests.

The notifier observes the ledger. The first time a date's attending count
reaches the threshold it records the attendees, persists the record, and
asks the poll's target for a confirmation. That happens at most once per
date: votes leaving and coming back do not fire it again. With NotifyOnce
disabled, a declined date fires once more on the next crossing.

A privileged actor resolves the request as confirmed or declined, optionally
with a location from the catalog and an attachment URL. The announcement
names the attendees frozen at request time. A date resolves once.

Attachments can arrive after the resolution starts: Resolve with
AwaitAttachment waits on the Mailbox until Deliver is called for the date,
the attachment timeout passes, or the context ends.
*/
package notifier
