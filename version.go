package svcboot

// Version is the svcboot release. Hosts and artifacts built from different
// releases may still interoperate as long as ABIVersion matches.
const Version = "0.1.0"
